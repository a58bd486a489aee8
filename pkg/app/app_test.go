package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type testServerOptions struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type testOptions struct {
	Server   *testServerOptions `mapstructure:"server"`
	Password string             `mapstructure:"password"`

	completed bool
	invalid   bool
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "addr")
	fs.DurationVar(&o.Server.Timeout, "server.timeout", o.Server.Timeout, "timeout")
	addSecret(fss.FlagSet("auth"), o)
	return fss
}

func addSecret(fs *pflag.FlagSet, o *testOptions) {
	fs.StringVar(&o.Password, "password", o.Password, "password")
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid")
	}
	return nil
}

func newTestOptions() *testOptions {
	return &testOptions{Server: &testServerOptions{Addr: ":8000", Timeout: time.Second}}
}

func TestAppLoadsConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("server:\n  addr: \":9000\"\n  timeout: 3s\n"), 0o600))

	opts := newTestOptions()
	ran := false
	a := NewApp("test", "test app",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error { ran = true; return nil }),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--config", cfgFile, "--server.timeout", "5s"})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":9000", opts.Server.Addr)
	assert.Equal(t, 5*time.Second, opts.Server.Timeout)
}

func TestAppValidationFailure(t *testing.T) {
	opts := newTestOptions()
	opts.invalid = true
	ran := false
	a := NewApp("test", "test app", WithOptions(opts), WithNoConfig(),
		WithRunFunc(func() error { ran = true; return nil }))

	cmd := a.Command()
	cmd.SetArgs(nil)
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
	assert.False(t, ran)
}

func TestAppRejectsPositionalArgs(t *testing.T) {
	a := NewApp("test", "test app", WithOptions(newTestOptions()), WithDefaultValidArgs(), WithNoConfig())
	cmd := a.Command()
	cmd.SetArgs([]string{"extra"})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestAppPrintConfigMasksSecrets(t *testing.T) {
	opts := newTestOptions()
	ran := false
	a := NewApp("test", "test app", WithOptions(opts), WithNoConfig(),
		WithRunFunc(func() error { ran = true; return nil }))

	secretKeys["password"] = true
	defer delete(secretKeys, "password")

	var out bytes.Buffer
	cmd := a.Command()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--print-config", "--password", "hunter2"})
	require.NoError(t, cmd.Execute())

	assert.False(t, ran)
	assert.Contains(t, out.String(), "server.addr:")
	assert.Contains(t, out.String(), "******")
	assert.NotContains(t, out.String(), "hunter2")
}

func TestAppEnvOverride(t *testing.T) {
	t.Setenv("WISETEST_SERVER_ADDR", ":7000")
	opts := newTestOptions()
	a := NewApp("test", "test app", WithOptions(opts), WithNoConfig(), WithEnvPrefix("WISETEST"))
	cmd := a.Command()
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, ":7000", opts.Server.Addr)
}
