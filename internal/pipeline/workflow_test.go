package pipeline

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
)

func workflowConfig(t *testing.T, pipeline string) *config.Config {
	t.Helper()
	data := `{
  "project": {"name": "fastapi-rfc7807"},
  "environments": [{"name": "py38", "commands": ["pytest"]}],
  "pipeline": ` + pipeline + `
}`
	cfg, _, err := config.Parse([]byte(data))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	return cfg
}

func TestBuildWorkflow_Defaults(t *testing.T) {
	w := BuildWorkflow(workflowConfig(t, `{}`))

	if w.Name != "CI" {
		t.Errorf("Name = %q", w.Name)
	}
	if !slices.Equal(w.On.Push.Branches, []string{"main"}) || !slices.Equal(w.On.Push.Tags, []string{"*"}) {
		t.Errorf("push trigger = %+v", w.On.Push)
	}
	for _, name := range []string{"setup", "integration-test", "container", "pipeline"} {
		job, ok := w.Jobs[name]
		if !ok {
			t.Errorf("job %q missing", name)
			continue
		}
		if job.If != "" {
			t.Errorf("job %q has condition %q without skip flags", name, job.If)
		}
	}

	run := w.Jobs["pipeline"]
	if !slices.Equal(run.Needs, []string{"setup"}) {
		t.Errorf("pipeline needs = %v", run.Needs)
	}
	if last := run.Steps[len(run.Steps)-1]; last.Run != "taskmatrix ci run" {
		t.Errorf("last pipeline step = %+v", last)
	}
	if run.Env != nil {
		t.Errorf("pipeline env = %v, want none without publication", run.Env)
	}
	if got := w.Jobs["setup"].Steps[1].With["python-version"]; got != config.DefaultPipelinePy {
		t.Errorf("python-version = %q", got)
	}
}

func TestBuildWorkflow_SkipFlags(t *testing.T) {
	w := BuildWorkflow(workflowConfig(t, `{
    "python": "3.9",
    "skip_setup": true,
    "skip_integration_test": true,
    "skip_container": true
  }`))

	for _, name := range []string{"setup", "integration-test", "container"} {
		if w.Jobs[name].If != skipCondition {
			t.Errorf("job %q condition = %q, want %q", name, w.Jobs[name].If, skipCondition)
		}
	}
	run := w.Jobs["pipeline"]
	if run.If != "" {
		t.Errorf("pipeline job skipped: %q", run.If)
	}
	if len(run.Needs) != 0 {
		t.Errorf("pipeline needs skipped jobs: %v", run.Needs)
	}
	if got := run.Steps[1].With["python-version"]; got != "3.9" {
		t.Errorf("python-version = %q, want 3.9", got)
	}
}

func TestBuildWorkflow_PublicationSecrets(t *testing.T) {
	cfg := workflowConfig(t, `{"publish_to_index": true, "publish_to_release": true}`)
	cfg.Release.PasswordEnv = "PYPI_TOKEN"

	env := BuildWorkflow(cfg).Jobs["pipeline"].Env
	want := map[string]string{
		"TWINE_USERNAME": "${{ secrets.TWINE_USERNAME }}",
		"PYPI_TOKEN":     "${{ secrets.PYPI_TOKEN }}",
		"GH_TOKEN":       "${{ secrets.GITHUB_TOKEN }}",
	}
	if len(env) != len(want) {
		t.Fatalf("env = %v, want %v", env, want)
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("env[%s] = %q, want %q", k, env[k], v)
		}
	}
}

func TestRenderWorkflow_ValidYAML(t *testing.T) {
	content, err := RenderWorkflow(workflowConfig(t, `{"branches": ["main", "develop"], "skip_container": true}`))
	if err != nil {
		t.Fatalf("RenderWorkflow() error = %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		t.Fatalf("rendered workflow is not YAML: %v\n%s", err, content)
	}
	for _, key := range []string{"name", "on", "jobs"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("top-level key %q missing", key)
		}
	}

	text := string(content)
	for _, check := range []string{
		"runs-on: ubuntu-latest",
		"uses: actions/checkout@v4",
		"- develop",
		"docker build --tag fastapi-rfc7807 .",
		"taskmatrix ci run",
	} {
		if !strings.Contains(text, check) {
			t.Errorf("missing %q in workflow:\n%s", check, text)
		}
	}
}

func TestWriteWorkflow(t *testing.T) {
	root := t.TempDir()
	cfg := workflowConfig(t, `{}`)

	created, err := WriteWorkflow(root, cfg, false)
	if err != nil || !created {
		t.Fatalf("WriteWorkflow() = %v, %v", created, err)
	}
	if _, err := os.Stat(filepath.Join(root, ".github", "workflows", "ci.yml")); err != nil {
		t.Fatalf("workflow not written: %v", err)
	}

	created, err = WriteWorkflow(root, cfg, false)
	if err != nil || created {
		t.Errorf("second WriteWorkflow() = %v, %v, want false, nil", created, err)
	}

	created, err = WriteWorkflow(root, cfg, true)
	if err != nil || !created {
		t.Errorf("forced WriteWorkflow() = %v, %v", created, err)
	}
}

func TestCheckWorkflow(t *testing.T) {
	root := t.TempDir()
	cfg := workflowConfig(t, `{"publish_to_index": true}`)

	if _, err := CheckWorkflow(root, cfg); !os.IsNotExist(err) {
		t.Errorf("CheckWorkflow() without file error = %v", err)
	}

	if _, err := WriteWorkflow(root, cfg, false); err != nil {
		t.Fatal(err)
	}
	ok, err := CheckWorkflow(root, cfg)
	if err != nil || !ok {
		t.Errorf("CheckWorkflow() = %v, %v, want up to date", ok, err)
	}

	cfg.Pipeline.SkipContainer = true
	ok, err = CheckWorkflow(root, cfg)
	if err != nil || ok {
		t.Errorf("CheckWorkflow() after config change = %v, %v, want stale", ok, err)
	}
}
