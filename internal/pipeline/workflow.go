package pipeline

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
)

// WorkflowFile is the workflow path relative to the project root.
const WorkflowFile = ".github/workflows/ci.yml"

// skipCondition disables a job while keeping it visible in the run graph.
const skipCondition = "${{ false }}"

// Workflow is a GitHub Actions workflow document.
type Workflow struct {
	Name string         `yaml:"name"`
	On   Triggers       `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers lists the events that start the workflow.
type Triggers struct {
	Push        *PushTrigger   `yaml:"push,omitempty"`
	PullRequest *BranchTrigger `yaml:"pull_request,omitempty"`
}

// PushTrigger selects pushed branches and tags.
type PushTrigger struct {
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// BranchTrigger selects target branches.
type BranchTrigger struct {
	Branches []string `yaml:"branches,omitempty"`
}

// Job is one workflow job.
type Job struct {
	Name   string            `yaml:"name,omitempty"`
	If     string            `yaml:"if,omitempty"`
	Needs  []string          `yaml:"needs,omitempty"`
	RunsOn string            `yaml:"runs-on"`
	Env    map[string]string `yaml:"env,omitempty"`
	Steps  []Step            `yaml:"steps"`
}

// Step is one job step.
type Step struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

// BuildWorkflow assembles the workflow for cfg. Skip flags become job-level
// conditions; skipped jobs are never listed as needs of another job.
func BuildWorkflow(cfg *config.Config) *Workflow {
	pc := cfg.Pipeline
	if pc == nil {
		pc = &config.PipelineConfig{}
	}
	branches := pc.Branches
	if len(branches) == 0 {
		branches = []string{"main"}
	}
	py := pc.Python
	if py == "" {
		py = config.DefaultPipelinePy
	}

	checkout := Step{Uses: "actions/checkout@v4"}
	setupPython := Step{Uses: "actions/setup-python@v5", With: map[string]string{"python-version": py}}
	setupGo := Step{Uses: "actions/setup-go@v5", With: map[string]string{"go-version": "stable"}}
	install := Step{Name: "Install taskmatrix", Run: "go install github.com/AndreyAkinshin/taskmatrix/cmd/taskmatrix@latest"}

	jobs := map[string]Job{}
	var needs []string

	setup := Job{
		Name:   "Setup",
		RunsOn: "ubuntu-latest",
		Steps: []Step{
			checkout,
			setupPython,
			{Name: "Install build tools", Run: "python -m pip install --upgrade pip setuptools wheel"},
		},
	}
	if pc.SkipSetup {
		setup.If = skipCondition
	} else {
		needs = append(needs, "setup")
	}
	jobs["setup"] = setup

	integration := Job{
		Name:   "Integration tests",
		Needs:  needs,
		RunsOn: "ubuntu-latest",
		Steps:  []Step{checkout, setupPython, setupGo, install, {Run: "taskmatrix test -- -m integration"}},
	}
	if pc.SkipIntegrationTest {
		integration.If = skipCondition
	}
	jobs["integration-test"] = integration

	container := Job{
		Name:   "Container image",
		Needs:  needs,
		RunsOn: "ubuntu-latest",
		Steps:  []Step{checkout, {Run: fmt.Sprintf("docker build --tag %s .", cfg.Project.Name)}},
	}
	if pc.SkipContainer {
		container.If = skipCondition
	}
	jobs["container"] = container

	run := Job{
		Name:   "Test and publish",
		Needs:  needs,
		RunsOn: "ubuntu-latest",
		Steps:  []Step{checkout, setupPython, setupGo, install, {Run: "taskmatrix ci run"}},
	}
	if pc.PublishToIndex || pc.PublishToRelease {
		run.Env = map[string]string{}
	}
	if pc.PublishToIndex {
		userVar, passVar := config.DefaultUsernameEnv, config.DefaultPasswordEnv
		if rc := cfg.Release; rc != nil {
			userVar = cmp.Or(rc.UsernameEnv, userVar)
			passVar = cmp.Or(rc.PasswordEnv, passVar)
		}
		for _, name := range []string{userVar, passVar} {
			run.Env[name] = fmt.Sprintf("${{ secrets.%s }}", name)
		}
	}
	if pc.PublishToRelease {
		run.Env["GH_TOKEN"] = "${{ secrets.GITHUB_TOKEN }}"
	}
	jobs["pipeline"] = run

	return &Workflow{
		Name: "CI",
		On: Triggers{
			Push:        &PushTrigger{Branches: branches, Tags: []string{"*"}},
			PullRequest: &BranchTrigger{Branches: branches},
		},
		Jobs: jobs,
	}
}

// RenderWorkflow returns the workflow YAML for cfg.
func RenderWorkflow(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(BuildWorkflow(cfg)); err != nil {
		return nil, fmt.Errorf("failed to render workflow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render workflow: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseWorkflow decodes a workflow document.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	return &w, nil
}

// WorkflowPath returns the workflow path under root.
func WorkflowPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(WorkflowFile))
}

// WriteWorkflow renders and writes the workflow under root.
// Returns false without writing when the file exists and force is unset.
func WriteWorkflow(root string, cfg *config.Config, force bool) (bool, error) {
	path := WorkflowPath(root)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	content, err := RenderWorkflow(cfg)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create workflows directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, fmt.Errorf("failed to write workflow: %w", err)
	}
	return true, nil
}

// CheckWorkflow reports whether the workflow on disk matches cfg.
// Formatting and key order are ignored.
func CheckWorkflow(root string, cfg *config.Config) (bool, error) {
	data, err := os.ReadFile(WorkflowPath(root))
	if err != nil {
		return false, err
	}
	onDisk, err := ParseWorkflow(data)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(onDisk, BuildWorkflow(cfg)), nil
}
