package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bernedogit/amber-sub001/internal/keystore"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	styleMaster = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleWork   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	styleDim    = lipgloss.NewStyle().Faint(true)
)

// printKeyList pretty-prints a ring's keys, one line per key, master
// keys highlighted and every row annotated with its certification
// count.
func printKeyList(keys []keystore.Key) {
	fmt.Fprintln(os.Stdout, styleHeader.Render(fmt.Sprintf("%-16s %-66s %-8s %s", "NAME", "PUBLIC KEY", "KIND", "CERTS")))
	for _, k := range keys {
		kind := styleWork.Render("work")
		if k.IsMaster {
			kind = styleMaster.Render("master")
		}
		name := k.Name
		if k.Alias != "" {
			name = fmt.Sprintf("%s (%s)", k.Name, k.Alias)
		}
		fmt.Fprintf(os.Stdout, "%-16s %-66s %-8s %s\n", name, k.EncodedPub(), kind, styleDim.Render(humanize.Comma(int64(len(k.Certs)))))
	}
}

// reportTransfer logs a one-line summary of how many bytes moved
// through an operation, using a human-friendly size.
func reportTransfer(operation string, n int64) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", operation, humanize.Bytes(uint64(n)))
}
