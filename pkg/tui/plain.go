package tui

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Plain renders events as a single-line progress bar, for terminals without the widget.
type Plain struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w, bar: progressCreate(w, -1, "")}
}

func (p *Plain) SetSpinner(title string) {
	_ = p.bar.Clear()
	p.bar = progressCreate(p.w, -1, title)
	_ = p.bar.RenderBlank()
}

func (p *Plain) SetProgress(title string, percent float64) {
	if p.bar.GetMax() != 100 {
		_ = p.bar.Clear()
		p.bar = progressCreate(p.w, 100, title)
	}
	p.bar.Describe(title)
	_ = p.bar.Set(int(percent * 100))
}

func (p *Plain) SetText(title string) {
	_ = p.bar.Clear()
	fmt.Fprintln(p.w, title)
}

func (p *Plain) Close() {
	_ = p.bar.Finish()
	fmt.Fprintln(p.w)
}

func progressCreate(w io.Writer, max int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]/[reset]",
			SaucerHead:    "[green]/[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
