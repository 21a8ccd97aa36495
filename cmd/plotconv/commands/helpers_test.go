package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/plotconv/pkg/plotfile"
)

const testNonces = 2

// writePlot creates an unoptimized plot named 7_0_<n>_<n> in dir.
func writePlot(t *testing.T, dir string, nonces int) (string, []byte) {
	t.Helper()

	data := make([]byte, nonces*plotfile.NonceSize)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}

	path := filepath.Join(dir, fmt.Sprintf("7_0_%d_%d", nonces, nonces))
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path, data
}

// converted swaps the second hash of every scoop with the one of its mirror
// scoop, nonce by nonce.
func converted(data []byte, nonces int) []byte {
	out := bytes.Clone(data)
	block := nonces * plotfile.ScoopSize

	for s := range plotfile.GroupPairs {
		m := plotfile.ScoopsPerNonce - 1 - s

		for n := range nonces {
			a := s*block + n*plotfile.ScoopSize + plotfile.HashSize
			b := m*block + n*plotfile.ScoopSize + plotfile.HashSize

			copy(out[a:a+plotfile.HashSize], data[b:b+plotfile.HashSize])
			copy(out[b:b+plotfile.HashSize], data[a:a+plotfile.HashSize])
		}
	}

	return out
}

// testGlobals points the CLI at a config file that keeps checkpoints in ckDir.
func testGlobals(t *testing.T, ckDir string) *Globals {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("checkpoint:\n  directory: %s\nprogress:\n  interval: 1h\n", ckDir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return &Globals{ConfigPath: path, NoColor: true}
}

func execute(ctx context.Context, cmd *cobra.Command, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)

	return stdout.String(), stderr.String(), err
}
