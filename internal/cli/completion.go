package cli

import (
	"fmt"
	"strings"

	"github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/task"
)

// cmdCompletion generates shell completion scripts.
func cmdCompletion(args []string) int {
	shell := ""
	alias := ""

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			printCompletionUsage()
			return 0
		case strings.HasPrefix(arg, "--alias="):
			alias = strings.TrimPrefix(arg, "--alias=")
		case arg == "--alias":
			out.ErrorPrefix("completion: --alias requires a value (--alias=<name>)")
			return errors.ExitConfigError
		case strings.HasPrefix(arg, "-"):
			out.ErrorPrefix("completion: unknown flag: %s", arg)
			printCompletionUsage()
			return errors.ExitConfigError
		default:
			if shell != "" {
				out.ErrorPrefix("completion: unexpected argument: %s", arg)
				return errors.ExitConfigError
			}
			shell = arg
		}
	}

	if shell == "" {
		out.ErrorPrefix("completion: shell required (bash, zsh, fish)")
		printCompletionUsage()
		return errors.ExitConfigError
	}

	cmdName := "taskmatrix"
	if alias != "" {
		cmdName = alias
	}

	switch shell {
	case "bash":
		out.Print("%s", generateBashCompletion(cmdName))
	case "zsh":
		out.Print("%s", generateZshCompletion(cmdName))
	case "fish":
		out.Print("%s", generateFishCompletion(cmdName))
	default:
		out.ErrorPrefix("completion: unsupported shell %q (use bash, zsh, or fish)", shell)
		return errors.ExitConfigError
	}
	return 0
}

// printCompletionUsage prints the help text for the completion command.
func printCompletionUsage() {
	w := out

	w.HelpTitle("taskmatrix completion - generate shell completion scripts")

	w.HelpSection("Usage:")
	w.HelpUsage("taskmatrix completion <shell> [--alias=<name>]")

	w.HelpSection("Options:")
	w.HelpFlag("--alias=<name>", "Generate completion for command alias", 14)
	w.HelpFlag("-h, --help", "Show this help", 14)

	w.HelpSection("Installation:")
	w.Println("  Bash:  eval \"$(taskmatrix completion bash)\"")
	w.Println("  Zsh:   eval \"$(taskmatrix completion zsh)\"")
	w.Println("  Fish:  taskmatrix completion fish | source")
	w.Println("")
}

// builtinCommands returns the CLI commands that are not tasks.
func builtinCommands() []string {
	return []string{"ci", "completion", "config", "envs", "init"}
}

// completionWords returns every task and command name.
func completionWords() []string {
	words := builtinCommands()
	for _, t := range task.Tasks(nil) {
		words = append(words, t.Name)
	}
	return words
}

// globalFlags returns the global CLI flags.
func globalFlags() []string {
	return []string{
		"--quiet",
		"--verbose",
		"--dir",
		"--dry-run",
		"--skip-missing-interpreters",
		"--help",
		"--version",
	}
}

// matrixTasks are the tasks that take environment names as arguments.
func matrixTasks() []string {
	var names []string
	for _, t := range task.Tasks(nil) {
		if t.Kind == task.KindMatrix {
			names = append(names, t.Name)
		}
	}
	return names
}

func generateBashCompletion(cmdName string) string {
	funcName := "_" + strings.ReplaceAll(cmdName, "-", "_") + "_completions"

	return fmt.Sprintf(`# %[1]s bash completion
# Add to ~/.bashrc: eval "$(taskmatrix completion bash)"

%[2]s() {
    local cur prev words cword
    _init_completion || return

    local commands="%[3]s"
    local flags="%[4]s"

    case "${prev}" in
        %[1]s)
            COMPREPLY=($(compgen -W "${commands} ${flags}" -- "${cur}"))
            return
            ;;
        config)
            COMPREPLY=($(compgen -W "validate" -- "${cur}"))
            return
            ;;
        ci)
            COMPREPLY=($(compgen -W "run workflow" -- "${cur}"))
            return
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "${cur}"))
            return
            ;;
        -C|--dir)
            COMPREPLY=($(compgen -d -- "${cur}"))
            return
            ;;
    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=($(compgen -W "${flags}" -- "${cur}"))
        return
    fi

    case " ${words[*]} " in
        %[5]s)
            COMPREPLY=($(compgen -W "$(taskmatrix envs --names 2>/dev/null)" -- "${cur}"))
            ;;
    esac
}

complete -F %[2]s %[1]s
`, cmdName, funcName, strings.Join(completionWords(), " "), strings.Join(globalFlags(), " "),
		"*\" "+strings.Join(matrixTasks(), " \"*|*\" ")+" \"*")
}

func generateZshCompletion(cmdName string) string {
	funcName := "_" + strings.ReplaceAll(cmdName, "-", "_")

	var commands strings.Builder
	for _, t := range task.Tasks(nil) {
		fmt.Fprintf(&commands, "        '%s:%s'\n", t.Name, zshEscape(t.Description))
	}
	for _, c := range []struct{ name, desc string }{
		{"ci", "CI pipeline adapter"},
		{"completion", "Generate shell completion"},
		{"config", "Configuration utilities"},
		{"envs", "List environments"},
		{"init", "Create taskmatrix.json"},
	} {
		fmt.Fprintf(&commands, "        '%s:%s'\n", c.name, c.desc)
	}

	return fmt.Sprintf(`#compdef %[1]s
# %[1]s zsh completion
# Add to ~/.zshrc: eval "$(taskmatrix completion zsh)"

%[2]s() {
    local -a commands envs
    commands=(
%[3]s    )

    if (( CURRENT == 2 )); then
        _describe -t commands 'command' commands
        return
    fi

    case "${words[2]}" in
        config)
            _values 'subcommand' validate
            ;;
        ci)
            _values 'subcommand' run workflow
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
        %[4]s)
            envs=(${(f)"$(taskmatrix envs --names 2>/dev/null)"})
            _describe -t envs 'environment' envs
            ;;
    esac
}

compdef %[2]s %[1]s
`, cmdName, funcName, commands.String(), strings.Join(matrixTasks(), "|"))
}

func generateFishCompletion(cmdName string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `# %[1]s fish completion
# Add to config: taskmatrix completion fish | source

complete -c %[1]s -f

`, cmdName)

	for _, t := range task.Tasks(nil) {
		fmt.Fprintf(&sb, "complete -c %s -n '__fish_use_subcommand' -a '%s' -d '%s'\n", cmdName, t.Name, fishEscape(t.Description))
	}
	for _, c := range builtinCommands() {
		fmt.Fprintf(&sb, "complete -c %s -n '__fish_use_subcommand' -a '%s'\n", cmdName, c)
	}

	sb.WriteString("\n# Global flags\n")
	for _, f := range globalFlags() {
		fmt.Fprintf(&sb, "complete -c %s -l %s\n", cmdName, strings.TrimPrefix(f, "--"))
	}

	sb.WriteString("\n# Subcommands\n")
	fmt.Fprintf(&sb, "complete -c %s -n '__fish_seen_subcommand_from config' -a 'validate'\n", cmdName)
	fmt.Fprintf(&sb, "complete -c %s -n '__fish_seen_subcommand_from ci' -a 'run workflow'\n", cmdName)
	fmt.Fprintf(&sb, "complete -c %s -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'\n", cmdName)

	sb.WriteString("\n# Environment names\n")
	fmt.Fprintf(&sb, "complete -c %s -n '__fish_seen_subcommand_from %s' -a '(taskmatrix envs --names 2>/dev/null)'\n",
		cmdName, strings.Join(matrixTasks(), " "))

	return sb.String()
}

func zshEscape(s string) string {
	return strings.NewReplacer(":", "\\:", "'", "'\\''").Replace(s)
}

func fishEscape(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
