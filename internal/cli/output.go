package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/liangyou/dnvm/internal/version"
)

// printer 渲染面向用户的输出。非终端输出时 lipgloss 不会写入转义序列。
type printer struct {
	w       io.Writer
	header  lipgloss.Style
	current lipgloss.Style
	muted   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		header:  r.NewStyle().Bold(true),
		current: r.NewStyle().Foreground(lipgloss.Color("10")),
		muted:   r.NewStyle().Faint(true),
	}
}

func (p *printer) Header(text string) {
	fmt.Fprintln(p.w, p.header.Render(text))
}

func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) Row(text string, current bool) {
	if current {
		text = p.current.Render(text)
	}
	fmt.Fprintf(p.w, "  %s\n", text)
}

func (p *printer) Note(text string) {
	fmt.Fprintln(p.w, p.muted.Render(text))
}

func (p *printer) Plans(plans []version.UpdatePlan) {
	for _, plan := range plans {
		from := "(none)"
		if plan.Current != nil {
			from = plan.Current.String()
		}
		p.Row(fmt.Sprintf("%s (%s): %s -> %s", plan.Channel.ChannelName, plan.Channel.SdkDirName, from, plan.Target.Version), false)
	}
}

// confirm 打印提示并读取一行，仅 y/yes 视为同意。
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
