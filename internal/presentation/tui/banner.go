package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  _         _   _   _          ", "#818cf8"},
	{" | |   __ _| |_| |_(_) ___ ___ ", "#a78bfa"},
	{" | |  / _` | __| __| |/ __/ _ \\", "#c084fc"},
	{" | |_| (_| | |_| |_| | (_|  __/", "#e879f9"},
	{" |____\\__,_|\\__|\\__|_|\\___\\___|", "#f472b6"},
}

// PrintBanner writes the Lattice banner to w, colored when w supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
