package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pylon.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
[project]
name = "example"
number_of_instances = 1
instance_type = "micro"
image_id = "ami-1"

[project.state_backend.local]
path = "./state.json"

[project.user_state_backend.local]
path = "./placement.json"

[project.services.app_1]
image = ""
dockerfile_path = "Dockerfile"
internal_port = 80
external_port = 80
cpus = 250
memory = 64

[project.services.app_1.envs]
KEY1 = "VALUE1"
KEY2 = """Multiline
string"""

[project.services.app_2]
image = "nginx:latest"
cpus = 250
memory = 64
depends_on = ["app_1"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "example", cfg.Project.Name)
	assert.Equal(t, 1, cfg.Project.NumberOfInstances)

	kind, local, _, err := cfg.Project.StateBackend.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "local", kind)
	assert.Equal(t, "./state.json", local.Path)

	app1 := cfg.Project.Services["app_1"]
	assert.Equal(t, "Dockerfile", app1.DockerfilePath)
	assert.Equal(t, 250, app1.Cpus)
	assert.Equal(t, "VALUE1", app1.Envs["KEY1"])
	assert.Equal(t, "Multiline\nstring", app1.Envs["KEY2"])

	app2 := cfg.Project.Services["app_2"]
	assert.Equal(t, []string{"app_1"}, app2.DependsOn)
}

func TestLoad_S3Backend(t *testing.T) {
	path := writeConfig(t, `
[project]
name = "example"

[project.state_backend.s3]
region = "us-west-2"
bucket = "my-bucket"
key = "state.json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	kind, _, s3, err := cfg.Project.StateBackend.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "s3", kind)
	assert.Equal(t, "us-west-2", s3.Region)
	assert.Equal(t, "my-bucket", s3.Bucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestSubstituteEnv(t *testing.T) {
	t.Setenv("PYLON_TEST_REGION", "us-east-1")

	raw := `region = "{{ env.PYLON_TEST_REGION }}"` + "\n" +
		`fallback = "{{ env.PYLON_UNKNOWN_VAR }}"`

	substituted := substituteEnv(raw)
	assert.Contains(t, substituted, "us-east-1")
	assert.Contains(t, substituted, "{{ env.PYLON_UNKNOWN_VAR }}")
}
