package commands

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 全コマンドで同じ出力フォーマットを使う
// ═══════════════════════════════════════════════════════════

const lineWidth = 59

// PrintHeader prints a titled double-line header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println(strings.Repeat("─", lineWidth))
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println(strings.Repeat("═", lineWidth))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %s : %s\n", pad(key, keyWidth), value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 0
	for i, w := range widths {
		total += w
		if i < len(widths)-1 {
			total += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = pad(v, widths[i])
	}
	fmt.Println(strings.TrimRight(strings.Join(cells, "  "), " "))
}

// pad right-pads s to width runes
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
