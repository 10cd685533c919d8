package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"
)

// Shell represents a supported shell for completion generation.
type Shell string

// Supported shells for completion.
const (
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellFish       Shell = "fish"
	ShellPowerShell Shell = "powershell"
)

// ErrUnsupportedShell is returned when an unknown shell is requested.
var ErrUnsupportedShell = errors.New("unsupported shell")

// flagType represents the completion type for a flag.
type flagType int

const (
	flagString flagType = iota // default
	flagBool
	flagDuration
	flagEnum // has predefined values
	flagFile // file with glob pattern
	flagDir  // directory
)

// flagDef describes a flag for completion purposes.
type flagDef struct {
	Long     string   // --book
	Short    string   // -c (empty if none)
	Type     flagType // completion type
	Desc     string   // help text
	Values   []string // for enum flags
	FileGlob []string // for file flags
}

// takesValue reports whether the flag consumes the next word.
func (f flagDef) takesValue() bool {
	return f.Type != flagBool
}

// commandDef describes a command for completion.
type commandDef struct {
	Name  string
	Desc  string
	Flags []flagDef
	Args  []string // fixed positional values (shells, command names)
}

// completionMeta holds completion hints for flags. Names, types and
// descriptions come from the FlagSet.
type completionMeta struct {
	Values   []string
	FileGlob []string
	IsDir    bool
}

var flagCompletionMeta = map[string]completionMeta{
	"math-engine": {Values: []string{"chrome", "katex"}},

	"config":   {FileGlob: []string{"*.yaml", "*.yml"}},
	"root":     {FileGlob: []string{"*.tex"}},
	"html-out": {FileGlob: []string{"*.html"}},
	"pdf-out":  {FileGlob: []string{"*.pdf"}},

	"book":       {IsDir: true},
	"scratch":    {IsDir: true},
	"asset-path": {IsDir: true},
}

// extractFlagsFromFlagSet turns a FlagSet into flag definitions enriched
// with flagCompletionMeta.
func extractFlagsFromFlagSet(fs *flag.FlagSet) []flagDef {
	var flags []flagDef

	fs.VisitAll(func(f *flag.Flag) {
		fd := flagDef{
			Long:  f.Name,
			Short: f.Shorthand,
			Desc:  f.Usage,
		}

		switch f.Value.Type() {
		case "bool":
			fd.Type = flagBool
		case "duration":
			fd.Type = flagDuration
		default:
			fd.Type = flagString
		}

		if meta, ok := flagCompletionMeta[f.Name]; ok {
			switch {
			case len(meta.Values) > 0:
				fd.Type = flagEnum
				fd.Values = meta.Values
			case len(meta.FileGlob) > 0:
				fd.Type = flagFile
				fd.FileGlob = meta.FileGlob
			case meta.IsDir:
				fd.Type = flagDir
			}
		}

		flags = append(flags, fd)
	})

	return flags
}

// getCommands returns the command registry for completion. Flags are
// read from the FlagSets the commands parse with.
func getCommands() []commandDef {
	buildFlagsFor := func(name string) []flagDef {
		return extractFlagsFromFlagSet(newBuildFlagSet(name, &buildFlags{}))
	}
	serveFlagDefs := extractFlagsFromFlagSet(newServeFlagSet(&serveFlags{}))
	doctorFlags := []flagDef{
		{Long: "json", Type: flagBool, Desc: "print the report as JSON"},
		{Long: "config", Short: "c", Type: flagFile, Desc: "config file path or name", FileGlob: []string{"*.yaml", "*.yml"}},
	}

	cmds := []commandDef{
		{Name: "build", Desc: "Build the PDF, then the HTML page", Flags: buildFlagsFor("build")},
		{Name: "html", Desc: "Build only the HTML page", Flags: buildFlagsFor("html")},
		{Name: "pdf", Desc: "Build only the PDF", Flags: buildFlagsFor("pdf")},
		{Name: "watch", Desc: "Rebuild whenever the book changes", Flags: buildFlagsFor("watch")},
		{Name: "serve", Desc: "Watch and serve the page over HTTP", Flags: serveFlagDefs},
		{Name: "doctor", Desc: "Check the compiler, browser and KaTeX setup", Flags: doctorFlags},
		{Name: "completion", Desc: "Generate shell completion script",
			Args: []string{string(ShellBash), string(ShellZsh), string(ShellFish), string(ShellPowerShell)}},
		{Name: "version", Desc: "Show version information"},
		{Name: "help", Desc: "Show help for a command"},
	}
	cmds[len(cmds)-1].Args = commandNames(cmds)
	return cmds
}

// GenerateCompletion writes shell completion script to w.
// Returns error if shell is unsupported or write fails.
func GenerateCompletion(w io.Writer, shell Shell) error {
	var script string
	switch shell {
	case ShellBash:
		script = generateBash(getCommands())
	case ShellZsh:
		script = generateZsh(getCommands())
	case ShellFish:
		script = generateFish(getCommands())
	case ShellPowerShell:
		script = generatePowerShell(getCommands())
	default:
		return fmt.Errorf("%w: %q (supported: bash, zsh, fish, powershell)", ErrUnsupportedShell, shell)
	}
	_, err := io.WriteString(w, script)
	return err
}

func generateBash(cmds []commandDef) string {
	var b strings.Builder
	b.WriteString("# bash completion for texbook\n")
	b.WriteString("_texbook_completions() {\n")
	b.WriteString("    local cur prev cmd\n")
	b.WriteString("    cur=\"${COMP_WORDS[COMP_CWORD]}\"\n")
	b.WriteString("    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"\n")
	b.WriteString("    cmd=\"${COMP_WORDS[1]}\"\n\n")

	fmt.Fprintf(&b, "    if [[ ${COMP_CWORD} -eq 1 && \"$cur\" != -* ]]; then\n")
	fmt.Fprintf(&b, "        COMPREPLY=( $(compgen -W %q -- \"$cur\") )\n", strings.Join(commandNames(cmds), " "))
	b.WriteString("        return\n    fi\n")
	b.WriteString("    case \"$cmd\" in -*|\"\") cmd=build ;; esac\n\n")

	b.WriteString("    case \"$prev\" in\n")
	for _, f := range valueFlags(cmds) {
		fmt.Fprintf(&b, "        %s)\n", strings.Join(flagSpellings(f), "|"))
		switch f.Type {
		case flagEnum:
			fmt.Fprintf(&b, "            COMPREPLY=( $(compgen -W %q -- \"$cur\") )\n", strings.Join(f.Values, " "))
		case flagDir:
			b.WriteString("            COMPREPLY=( $(compgen -d -- \"$cur\") )\n")
		case flagFile:
			b.WriteString("            COMPREPLY=( $(compgen -d -- \"$cur\")")
			for _, g := range f.FileGlob {
				fmt.Fprintf(&b, " $(compgen -f -X '!%s' -- \"$cur\")", g)
			}
			b.WriteString(" )\n")
		default:
			b.WriteString("            COMPREPLY=()\n")
		}
		b.WriteString("            return\n            ;;\n")
	}
	b.WriteString("    esac\n\n")

	b.WriteString("    case \"$cmd\" in\n")
	for _, c := range cmds {
		words := slices.Clone(c.Args)
		for _, f := range c.Flags {
			words = append(words, flagSpellings(f)...)
		}
		if len(words) == 0 {
			continue
		}
		fmt.Fprintf(&b, "        %s)\n", c.Name)
		fmt.Fprintf(&b, "            COMPREPLY=( $(compgen -W %q -- \"$cur\") )\n", strings.Join(words, " "))
		b.WriteString("            ;;\n")
	}
	b.WriteString("    esac\n")
	b.WriteString("}\n")
	b.WriteString("complete -F _texbook_completions texbook\n")
	return b.String()
}

func generateZsh(cmds []commandDef) string {
	var b strings.Builder
	b.WriteString("#compdef texbook\n\n")
	b.WriteString("_texbook() {\n")
	b.WriteString("    local -a commands\n")
	b.WriteString("    commands=(\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "        '%s:%s'\n", c.Name, zshEscape(c.Desc))
	}
	b.WriteString("    )\n\n")
	b.WriteString("    if (( CURRENT == 2 )) && [[ $words[2] != -* ]]; then\n")
	b.WriteString("        _describe 'command' commands\n")
	b.WriteString("        return\n")
	b.WriteString("    fi\n\n")
	b.WriteString("    local cmd=build\n")
	b.WriteString("    if [[ $words[2] != -* ]]; then\n")
	b.WriteString("        cmd=$words[2]\n")
	b.WriteString("        shift words\n")
	b.WriteString("        (( CURRENT-- ))\n")
	b.WriteString("    fi\n\n")
	b.WriteString("    case $cmd in\n")
	for _, c := range cmds {
		if len(c.Flags) == 0 && len(c.Args) == 0 {
			continue
		}
		fmt.Fprintf(&b, "        %s)\n", c.Name)
		b.WriteString("            _arguments")
		for _, f := range c.Flags {
			fmt.Fprintf(&b, " \\\n                %s", zshFlagSpec(f))
		}
		if len(c.Args) > 0 {
			fmt.Fprintf(&b, " \\\n                '1:value:(%s)'", strings.Join(c.Args, " "))
		}
		b.WriteString("\n            ;;\n")
	}
	b.WriteString("    esac\n")
	b.WriteString("}\n\n")
	b.WriteString("if [ \"$funcstack[1]\" = \"_texbook\" ]; then\n")
	b.WriteString("    _texbook \"$@\"\n")
	b.WriteString("else\n")
	b.WriteString("    compdef _texbook texbook\n")
	b.WriteString("fi\n")
	return b.String()
}

func zshFlagSpec(f flagDef) string {
	desc := "[" + zshEscape(f.Desc) + "]"
	var action string
	switch f.Type {
	case flagEnum:
		action = ":value:(" + strings.Join(f.Values, " ") + ")"
	case flagDir:
		action = ":directory:_files -/"
	case flagFile:
		action = ":file:_files -g \"" + strings.Join(f.FileGlob, " ") + "\""
	case flagString, flagDuration:
		action = ":value: "
	}
	if f.Short != "" {
		return fmt.Sprintf("'(-%s --%s)'{-%s,--%s}'%s%s'", f.Short, f.Long, f.Short, f.Long, desc, action)
	}
	return fmt.Sprintf("'--%s%s%s'", f.Long, desc, action)
}

func zshEscape(s string) string {
	r := strings.NewReplacer(`'`, `'\''`, `[`, `\[`, `]`, `\]`, `:`, `\:`)
	return r.Replace(s)
}

func generateFish(cmds []commandDef) string {
	var b strings.Builder
	b.WriteString("# fish completion for texbook\n\n")
	b.WriteString("function __fish_texbook_needs_command\n")
	b.WriteString("    set -l cmd (commandline -opc)\n")
	b.WriteString("    test (count $cmd) -eq 1\n")
	b.WriteString("end\n\n")
	b.WriteString("function __fish_texbook_using_command\n")
	b.WriteString("    set -l cmd (commandline -opc)\n")
	b.WriteString("    test (count $cmd) -gt 1; and test $cmd[2] = $argv[1]\n")
	b.WriteString("end\n\n")
	b.WriteString("complete -c texbook -f\n\n")

	for _, c := range cmds {
		fmt.Fprintf(&b, "complete -c texbook -n __fish_texbook_needs_command -a %s -d %s\n", c.Name, fishQuote(c.Desc))
	}
	for _, c := range cmds {
		cond := fishQuote("__fish_texbook_using_command " + c.Name)
		if len(c.Args) > 0 {
			fmt.Fprintf(&b, "complete -c texbook -n %s -a %s\n", cond, fishQuote(strings.Join(c.Args, " ")))
		}
		for _, f := range c.Flags {
			fmt.Fprintf(&b, "complete -c texbook -n %s", cond)
			if f.Short != "" {
				fmt.Fprintf(&b, " -s %s", f.Short)
			}
			fmt.Fprintf(&b, " -l %s", f.Long)
			switch f.Type {
			case flagEnum:
				fmt.Fprintf(&b, " -x -a %s", fishQuote(strings.Join(f.Values, " ")))
			case flagDir:
				b.WriteString(" -x -a '(__fish_complete_directories)'")
			case flagFile:
				b.WriteString(" -r -F")
			case flagString, flagDuration:
				b.WriteString(" -x")
			}
			fmt.Fprintf(&b, " -d %s\n", fishQuote(f.Desc))
		}
	}
	return b.String()
}

func fishQuote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

func generatePowerShell(cmds []commandDef) string {
	var b strings.Builder
	b.WriteString("# powershell completion for texbook\n")
	b.WriteString("Register-ArgumentCompleter -Native -CommandName texbook -ScriptBlock {\n")
	b.WriteString("    param($wordToComplete, $commandAst, $cursorPosition)\n\n")

	b.WriteString("    $commands = [ordered]@{\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "        %s = %s\n", psQuote(c.Name), psQuote(c.Desc))
	}
	b.WriteString("    }\n")
	b.WriteString("    $words = @{\n")
	for _, c := range cmds {
		words := slices.Clone(c.Args)
		for _, f := range c.Flags {
			words = append(words, "--"+f.Long)
		}
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = psQuote(w)
		}
		fmt.Fprintf(&b, "        %s = @(%s)\n", psQuote(c.Name), strings.Join(quoted, ", "))
	}
	b.WriteString("    }\n\n")

	b.WriteString("    $elements = @($commandAst.CommandElements | Select-Object -Skip 1 | ForEach-Object { $_.ToString() })\n")
	b.WriteString("    if ($wordToComplete -ne '' -and $elements.Count -gt 0) {\n")
	b.WriteString("        $elements = @($elements | Select-Object -SkipLast 1)\n")
	b.WriteString("    }\n")
	b.WriteString("    if ($elements.Count -eq 0 -and -not $wordToComplete.StartsWith('-')) {\n")
	b.WriteString("        $commands.Keys | Where-Object { $_ -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("            [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $commands[$_])\n")
	b.WriteString("        }\n")
	b.WriteString("        return\n")
	b.WriteString("    }\n\n")
	b.WriteString("    $cmd = 'build'\n")
	b.WriteString("    if ($elements.Count -gt 0 -and -not $elements[0].StartsWith('-')) { $cmd = $elements[0] }\n")
	b.WriteString("    $words[$cmd] | Where-Object { $_ -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("        [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterName', $_)\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func commandNames(cmds []commandDef) []string {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}

func flagSpellings(f flagDef) []string {
	s := []string{"--" + f.Long}
	if f.Short != "" {
		s = append(s, "-"+f.Short)
	}
	return s
}

// valueFlags returns every distinct flag that takes a value, sorted by
// name, across all commands.
func valueFlags(cmds []commandDef) []flagDef {
	seen := make(map[string]flagDef)
	for _, c := range cmds {
		for _, f := range c.Flags {
			if f.takesValue() {
				seen[f.Long] = f
			}
		}
	}
	out := make([]flagDef, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Long < out[j].Long })
	return out
}

// runCompletion handles the completion command.
func runCompletion(args []string, env *Environment) error {
	if len(args) == 0 {
		printCompletionUsage(env.Stdout)
		return nil
	}
	return GenerateCompletion(env.Stdout, Shell(args[0]))
}

// printCompletionUsage prints help for the completion command.
func printCompletionUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbook completion <shell>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate shell completion script for the specified shell.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported shells:")
	fmt.Fprintln(w, "  bash        Bash completion script")
	fmt.Fprintln(w, "  zsh         Zsh completion script")
	fmt.Fprintln(w, "  fish        Fish completion script")
	fmt.Fprintln(w, "  powershell  PowerShell completion script")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Installation:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Bash:")
	fmt.Fprintln(w, "    # Add to ~/.bashrc:")
	fmt.Fprintln(w, "    eval \"$(texbook completion bash)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Zsh:")
	fmt.Fprintln(w, "    # Add to ~/.zshrc (after compinit):")
	fmt.Fprintln(w, "    eval \"$(texbook completion zsh)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Fish:")
	fmt.Fprintln(w, "    texbook completion fish > ~/.config/fish/completions/texbook.fish")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  PowerShell:")
	fmt.Fprintln(w, "    # Add to $PROFILE:")
	fmt.Fprintln(w, "    texbook completion powershell | Out-String | Invoke-Expression")
}
