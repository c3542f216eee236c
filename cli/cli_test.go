package cli_test

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absmach/fedanomaly/cli"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configTemplate = `
experiment_name = "synthetic"
models_path = %q
labels_path = %q
rounds = 2
epochs_per_round = 1
split_size = 4
batch_size = 4
val_split = 0.2
train_split = 0.5
hidden = 3
seed = 1
label_scale = 1.0

[threshold]
deviations = 2.0
period = [0.0, 0.5]

[schedule]
rate = 0.01
decay_start = 2
decay_rate = 0.1

[clients.CLIENT_1]
dataset_path = %q
dataset_columns = [0, 1]
`

type experiment struct {
	config string
	models string
}

func newExperiment(t *testing.T) experiment {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "synthetic", "run-1")
	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))

	var b strings.Builder
	b.WriteString("a,b\n")
	for i := range 80 {
		v := math.Sin(float64(i) / 2)
		if i >= 60 {
			v += 3 * math.Cos(float64(i)*1.7)
		}
		fmt.Fprintf(&b, "%f,%f\n", v, -v)
	}
	require.NoError(t, os.WriteFile(base+"_4.csv", []byte(b.String()), 0o600))

	labelsPath := filepath.Join(dir, "labels.yaml")
	require.NoError(t, os.WriteFile(labelsPath, []byte("synthetic:\n  run-1:\n    bearing-0: [[15, 19]]\n"), 0o600))

	models := filepath.Join(dir, "model")
	config := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(config, fmt.Appendf(nil, configTemplate, models, labelsPath, base), 0o600))

	return experiment{config: config, models: models}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

func TestTrainCmd(t *testing.T) {
	exp := newExperiment(t)

	out, errOut := execute(t, cli.NewTrainCmd(), "-c", exp.config, "--evaluate")
	assert.NotContains(t, errOut, "error")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "sequence")
	assert.Contains(t, out, "spectral")
	assert.Contains(t, out, "threshold")

	dir := filepath.Join(exp.models, "synthetic", "local", "CLIENT_1")
	for _, k := range detector.Kinds {
		assert.FileExists(t, trainer.ModelPath(dir, k))
	}
}

func TestEvaluateCmd(t *testing.T) {
	exp := newExperiment(t)
	execute(t, cli.NewTrainCmd(), "-c", exp.config)

	out, errOut := execute(t, cli.NewEvaluateCmd(), "-c", exp.config, "--local")
	assert.NotContains(t, errOut, "error")
	assert.Contains(t, out, "reports")
	assert.Contains(t, out, "auc")

	_, errOut = execute(t, cli.NewEvaluateCmd(), "-c", exp.config)
	assert.Contains(t, errOut, "error")
}

func TestCmdErrors(t *testing.T) {
	exp := newExperiment(t)

	cases := []struct {
		desc string
		cmd  func() *cobra.Command
		args []string
		out  string
		err  string
	}{
		{desc: "train with missing config", cmd: cli.NewTrainCmd, args: []string{"-c", exp.config + ".missing"}, err: "error"},
		{desc: "train with unknown client", cmd: cli.NewTrainCmd, args: []string{"-c", exp.config, "--client", "CLIENT_7"}, err: "unknown client"},
		{desc: "train with arguments", cmd: cli.NewTrainCmd, args: []string{"-c", exp.config, "extra"}, out: "usage"},
		{desc: "evaluate with bad log level", cmd: cli.NewEvaluateCmd, args: []string{"-c", exp.config, "--log-level", "loud"}, err: "error"},
		{desc: "watch with arguments", cmd: cli.NewWatchCmd, args: []string{"extra"}, out: "usage"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			out, errOut := execute(t, tc.cmd(), tc.args...)
			if tc.out != "" {
				assert.Contains(t, out, tc.out)
			}
			if tc.err != "" {
				assert.Contains(t, errOut, tc.err)
			}
		})
	}
}
