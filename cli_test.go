package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v3"

	"boletos/billing"
)

// fakeApp records the calls made by the CLI.
type fakeApp struct {
	calls []string
	debug bool
	req   billing.SyncRequest
}

func (f *fakeApp) SetDebug(debug bool) { f.debug = debug }

func (f *fakeApp) Serve(_ context.Context, cfgPath string, development bool) error {
	f.calls = append(f.calls, fmt.Sprintf("serve %s %t", cfgPath, development))
	return nil
}

func (f *fakeApp) Sync(_ context.Context, cfgPath string, req billing.SyncRequest) error {
	f.calls = append(f.calls, fmt.Sprintf("sync %s %s", cfgPath, req.Key))
	f.req = req
	return nil
}

func (f *fakeApp) Check(_ context.Context, cfgPath, key string) error {
	f.calls = append(f.calls, fmt.Sprintf("check %s %s", cfgPath, key))
	return nil
}

func (f *fakeApp) Clients(_ context.Context, cfgPath, squad string) error {
	f.calls = append(f.calls, fmt.Sprintf("clients %s %q", cfgPath, squad))
	return nil
}

func (f *fakeApp) History(_ context.Context, cfgPath, search string, limit int) error {
	f.calls = append(f.calls, fmt.Sprintf("history %s %q %d", cfgPath, search, limit))
	return nil
}

func (f *fakeApp) Templates(dir string) error {
	f.calls = append(f.calls, "templates "+dir)
	return nil
}

func TestBuildCLI(t *testing.T) {

	tests := []struct {
		name   string
		args   []string
		calls  []string
		debug  bool
		errMsg string
	}{
		{
			name:  "serve with defaults",
			args:  []string{"serve"},
			calls: []string{"serve config.yaml false"},
		},
		{
			name:  "serve in development with debug",
			args:  []string{"--debug", "serve", "-c", "dev.yaml", "--dev"},
			calls: []string{"serve dev.yaml true"},
			debug: true,
		},
		{
			name:  "check",
			args:  []string{"check", "0,5"},
			calls: []string{"check config.yaml 0,5"},
		},
		{
			name:   "check without key",
			args:   []string{"check"},
			errMsg: "expected one KEY argument",
		},
		{
			name:  "clients of a squad",
			args:  []string{"clients", "--squad", "Alpha"},
			calls: []string{`clients config.yaml "Alpha"`},
		},
		{
			name:  "history",
			args:  []string{"history", "--search", "padaria", "--limit", "5"},
			calls: []string{`history config.yaml "padaria" 5`},
		},
		{
			name:   "history with bad limit",
			args:   []string{"history", "--limit", "0"},
			errMsg: "--limit must be at least 1",
		},
		{
			name:  "templates",
			args:  []string{"templates", "/tmp/boletos"},
			calls: []string{"templates /tmp/boletos"},
		},
		{
			name:   "sync requires the payment methods",
			args:   []string{"sync", "42"},
			errMsg: "method-a",
		},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.name), func(t *testing.T) {
			fake := &fakeApp{}
			cmd := BuildCLI(fake)
			err := cmd.Run(context.Background(), append([]string{"boletos"}, tt.args...))
			if tt.errMsg != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not contain %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.calls, fake.calls); diff != "" {
				t.Errorf("calls (-want +got):\n%s", diff)
			}
			if got, want := fake.debug, tt.debug; got != want {
				t.Errorf("debug got %t want %t", got, want)
			}
		})
	}
}

func TestBuildCLISync(t *testing.T) {
	fake := &fakeApp{}
	cmd := BuildCLI(fake)
	err := cmd.Run(context.Background(), []string{
		"boletos", "sync",
		"--method-a", "PIX", "--credit-a", "R$ 1.500,00", "--date-a", "01/10", "--spend-a", "150",
		"--method-b", "Sem Campanha",
		"42",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := billing.SyncRequest{
		Key:       "42",
		PlatformA: billing.PlatformInput{Method: "PIX", Credit: "R$ 1.500,00", Date: "01/10", Spend: "150"},
		PlatformB: billing.PlatformInput{Method: "Sem Campanha"},
	}
	if diff := cmp.Diff(want, fake.req); diff != "" {
		t.Errorf("request (-want +got):\n%s", diff)
	}
}

func TestSyncFlagUsage(t *testing.T) {
	var syncCmd *cli.Command
	for _, c := range BuildCLI(&fakeApp{}).Commands {
		if c.Name == "sync" {
			syncCmd = c
		}
	}
	if syncCmd == nil {
		t.Fatal("no sync command")
	}

	usage := map[string]string{}
	for _, f := range syncCmd.Flags {
		if sf, ok := f.(*cli.StringFlag); ok {
			usage[sf.Name] = sf.Usage
		}
	}
	for name, want := range map[string]string{
		"method-a": "platform A payment method",
		"spend-b":  "platform B daily spend",
	} {
		if got := usage[name]; got != want {
			t.Errorf("usage of --%s got %q want %q", name, got, want)
		}
	}
	// platform names come from configuration
	for name, u := range usage {
		if strings.Contains(u, "Meta") || strings.Contains(u, "Google") {
			t.Errorf("usage of --%s names a platform: %q", name, u)
		}
	}
}
