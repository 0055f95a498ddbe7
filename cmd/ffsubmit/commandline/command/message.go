package command

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ffportal/ffsubmit/pkg/commandline/usage"
)

// fill expands "{{ .Command }}" in help messages.
func fill(text string, command string) string {
	tpl, err := template.New("").Parse(text)
	if err != nil {
		return text + "(templating error: " + err.Error() + ")\n"
	}
	sb := new(strings.Builder)
	if err := tpl.Execute(sb, struct{ Command string }{Command: command}); err != nil {
		return text + "(templating error: " + err.Error() + ")\n"
	}
	return sb.String()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}

// BuildUsageMessage formats the help of a command.
//
// Flags are not listed here; subcommands prints them after the message.
// Give extra the flags which are not in u, to get the "Flags:" heading for them.
func BuildUsageMessage[T any](command string, help Help, u usage.Usage[T], extra ...usage.Flag) string {
	description := help.Detail
	if description == "" {
		description = help.Synopsis
	}
	lines := []string{
		"Usage: " + command + " " + u.String(),
		"",
		indent(description),
	}

	if help.Example != "" {
		lines = append(lines, "", "Example:", indent(help.Example))
	}

	if args := u.Args(); 0 < len(args) {
		lines = append(lines, "", "Arguments:")
		for _, a := range args {
			lines = append(lines, indent(fmt.Sprintf(
				"%s\n\t%s", a.Name, strings.ReplaceAll(strings.TrimSpace(a.Help), "\n", "\n\t"),
			)))
		}
	}

	if 0 < len(u.Flags())+len(extra) {
		lines = append(lines, "", "Flags:", "")
	}

	return fill(strings.Join(lines, "\n"), command)
}
