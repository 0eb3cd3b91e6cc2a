package terminal

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type fakeBackend struct {
	specs  []SpawnSpec
	writes []fakeWrite
	live   []string
	closed []string
}

type fakeWrite struct {
	id   string
	data string
	meta WriteMeta
}

func (f *fakeBackend) Spawn(spec SpawnSpec) (string, error) {
	f.specs = append(f.specs, spec)
	id := fmt.Sprintf("session-%d", len(f.specs))
	f.live = append(f.live, id)
	return id, nil
}

func (f *fakeBackend) Write(id, data string, meta WriteMeta) error {
	f.writes = append(f.writes, fakeWrite{id: id, data: data, meta: meta})
	return nil
}

func (f *fakeBackend) Resize(id string, cols, rows uint16) error { return nil }

func (f *fakeBackend) Close(id string) error {
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeBackend) SessionIDs() []string {
	return append([]string(nil), f.live...)
}

func TestOpenLocalUsesLoginShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	fake := &fakeBackend{}
	m := NewManagerWith(fake)

	if _, err := m.OpenLocal("", 0, 0); err != nil {
		t.Fatalf("open local: %v", err)
	}

	spec := fake.specs[0]
	if spec.Kind != KindLocal {
		t.Fatalf("kind = %q, want %q", spec.Kind, KindLocal)
	}
	if spec.Program != "/bin/sh" {
		t.Fatalf("program = %q, want /bin/sh", spec.Program)
	}
	if spec.EnvironmentTag != "LOCAL" {
		t.Fatalf("environment tag = %q, want LOCAL", spec.EnvironmentTag)
	}
}

func TestOpenLocalPassesThroughSize(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	fake := &fakeBackend{}
	m := NewManagerWith(fake)

	if _, err := m.OpenLocal("STAGING", 100, 40); err != nil {
		t.Fatalf("open local: %v", err)
	}

	spec := fake.specs[0]
	if spec.InitialCols != 100 || spec.InitialRows != 40 {
		t.Fatalf("size = %dx%d, want 100x40", spec.InitialCols, spec.InitialRows)
	}
	if spec.EnvironmentTag != "STAGING" {
		t.Fatalf("environment tag = %q, want STAGING", spec.EnvironmentTag)
	}
}

func TestOpenSSHBuildsArgv(t *testing.T) {
	// Point the ssh override at a binary that certainly exists; only the
	// argv assembly is under test.
	t.Setenv("OPSPAD_SSH", "/bin/sh")

	fake := &fakeBackend{}
	m := NewManagerWith(fake)

	_, err := m.OpenSSH(SSHOptions{
		User:           "deploy",
		Host:           "db1.internal",
		Port:           2222,
		IdentityFile:   "/keys/prod_ed25519",
		ExtraArgs:      []string{"-o", "StrictHostKeyChecking=no"},
		EnvironmentTag: "PROD",
	})
	if err != nil {
		t.Fatalf("open ssh: %v", err)
	}

	spec := fake.specs[0]
	if spec.Kind != KindSSH {
		t.Fatalf("kind = %q, want %q", spec.Kind, KindSSH)
	}
	if spec.Program != "/bin/sh" {
		t.Fatalf("program = %q, want OPSPAD_SSH override", spec.Program)
	}
	want := []string{"-tt", "-p", "2222", "-i", "/keys/prod_ed25519", "-o", "StrictHostKeyChecking=no", "deploy@db1.internal"}
	if !reflect.DeepEqual(spec.Args, want) {
		t.Fatalf("argv = %v, want %v", spec.Args, want)
	}
}

func TestOpenSSHMissingClient(t *testing.T) {
	t.Setenv("OPSPAD_SSH", "/nonexistent/ssh-client")

	fake := &fakeBackend{}
	m := NewManagerWith(fake)

	_, err := m.OpenSSH(SSHOptions{User: "root", Host: "web1"})
	var be *BackendError
	if err == nil || !errors.As(err, &be) {
		t.Fatalf("open ssh = %v, want BackendError", err)
	}
	if len(fake.specs) != 0 {
		t.Fatal("spawn attempted despite missing ssh client")
	}
}

func TestSSHArgs(t *testing.T) {
	cases := []struct {
		name string
		opts SSHOptions
		want []string
	}{
		{
			"minimal",
			SSHOptions{User: "root", Host: "web1"},
			[]string{"-tt", "root@web1"},
		},
		{
			"full",
			SSHOptions{User: "ops", Host: "web1", Port: 2200, IdentityFile: "/keys/ed25519", ExtraArgs: []string{"-4"}},
			[]string{"-tt", "-p", "2200", "-i", "/keys/ed25519", "-4", "ops@web1"},
		},
		{
			"blank identity skipped",
			SSHOptions{User: "ops", Host: "web1", IdentityFile: "   "},
			[]string{"-tt", "ops@web1"},
		},
		{
			"no user",
			SSHOptions{Host: "bastion"},
			[]string{"-tt", "bastion"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sshArgs(tc.opts); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("sshArgs = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWritePassesProvenanceThrough(t *testing.T) {
	fake := &fakeBackend{}
	m := NewManagerWith(fake)

	if err := m.Write("s1", "ls\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.WriteWithMeta("s1", "make deploy\n", WriteMeta{Origin: OriginCommandDock}); err != nil {
		t.Fatalf("write with meta: %v", err)
	}

	if fake.writes[0].meta.Origin != "" {
		t.Fatalf("plain write carried origin %q", fake.writes[0].meta.Origin)
	}
	if fake.writes[1].meta.Origin != OriginCommandDock {
		t.Fatalf("dock write origin = %q, want %q", fake.writes[1].meta.Origin, OriginCommandDock)
	}
}

func TestCloseAllClosesEverySession(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	fake := &fakeBackend{}
	m := NewManagerWith(fake)

	for i := 0; i < 3; i++ {
		if _, err := m.OpenLocal("", 0, 0); err != nil {
			t.Fatalf("open local %d: %v", i, err)
		}
	}

	m.CloseAll()
	if len(fake.closed) != 3 {
		t.Fatalf("closed %d sessions, want 3", len(fake.closed))
	}
}
