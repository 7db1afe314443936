package ui

import (
	"fmt"
	"strings"

	"ftr/internal/domain"
	"ftr/internal/storage"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	log "github.com/sirupsen/logrus"
)

// ErrorViewer displays test failures in an interactive TUI, grouped by
// category and class
type ErrorViewer struct {
	storage storage.Storage
}

// NewErrorViewer creates a new ErrorViewer
func NewErrorViewer(st storage.Storage) *ErrorViewer {
	return &ErrorViewer{
		storage: st,
	}
}

// failureGroup is one category of the failure tree
type failureGroup struct {
	category domain.Category
	classes  []failureClass
}

// failureClass holds the indexes into TestResultsOutput.Details of the
// failures of one test class
type failureClass struct {
	id      string
	indexes []int
}

// groupFailures groups failures by category (unit first) and class, in the
// order the classes first failed
func groupFailures(details []domain.TestFailure, hideResolved bool) []failureGroup {
	var groups []failureGroup
	groupIndex := make(map[domain.Category]int)
	classIndex := make(map[string]int)

	for _, c := range []domain.Category{domain.CategoryUnit, domain.CategoryIntegration} {
		groupIndex[c] = len(groups)
		groups = append(groups, failureGroup{category: c})
	}

	for i, f := range details {
		if hideResolved && f.Resolved {
			continue
		}
		g, ok := groupIndex[f.Category]
		if !ok {
			g = len(groups)
			groupIndex[f.Category] = g
			groups = append(groups, failureGroup{category: f.Category})
		}
		id := f.Module + "." + f.ClassName
		key := string(f.Category) + "|" + id
		c, ok := classIndex[key]
		if !ok {
			c = len(groups[g].classes)
			classIndex[key] = c
			groups[g].classes = append(groups[g].classes, failureClass{id: id})
		}
		groups[g].classes[c].indexes = append(groups[g].classes[c].indexes, i)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.classes) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// rerunCommand is the command line running only the failed test
func rerunCommand(site string, f domain.TestFailure) string {
	args := []string{"ftr", "run"}
	if site != "" {
		args = append(args, "--site", site)
	}
	args = append(args, "--module", f.Module, "--case", f.ClassName)
	if f.TestName != "" {
		args = append(args, "--test", f.TestName)
	}
	return strings.Join(args, " ")
}

// View displays test failures in an interactive TUI
func (ev *ErrorViewer) View(results *domain.TestResultsOutput) error {
	if len(results.Details) == 0 {
		color.Green("✓ No test failures found!")
		return nil
	}

	hideResolved := false
	countUnresolved := func() int {
		n := 0
		for _, f := range results.Details {
			if !f.Resolved {
				n++
			}
		}
		return n
	}

	app := tview.NewApplication()

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)
	updateHeader := func() {
		headerView.SetText(fmt.Sprintf(" %s: %d failure(s), %d unresolved ",
			tview.Escape(results.Meta.Site), len(results.Details), countUnresolved()))
	}

	footerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[yellow]↑↓[white] navigate  [yellow]→[white] details  [yellow]←[white] back  " +
			"[yellow]r[white] resolve  [yellow]h[white] hide resolved  [yellow]q[white] quit")

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	detailsView.SetBorder(true).SetTitle(" Details ")

	root := tview.NewTreeNode("failures").SetSelectable(false)
	tree := tview.NewTreeView().
		SetRoot(root).
		SetTopLevel(1).
		SetGraphicsColor(tcell.ColorDarkCyan)
	tree.SetBorder(true).SetTitle(" Failed tests ")

	leafText := func(i int) string {
		f := results.Details[i]
		if f.Resolved {
			return fmt.Sprintf("[gray]✓ %s", tview.Escape(f.TestName))
		}
		return fmt.Sprintf("[red]✗[white] %s [gray]%s", tview.Escape(f.TestName), f.Kind)
	}

	showFailure := func(node *tview.TreeNode) {
		if node == nil {
			return
		}
		i, ok := node.GetReference().(int)
		if !ok {
			statsView.SetText("")
			detailsView.SetText("")
			return
		}
		f := results.Details[i]
		statsView.SetText(ev.formatFailureStats(f, i+1) +
			"[cyan]rerun:[white] " + tview.Escape(rerunCommand(results.Meta.Site, f)))
		detailsView.SetText(ev.formatFailureDetails(f)).ScrollToBeginning()
	}

	// rebuild refills the tree, keeping the selected failure when it is
	// still shown
	rebuild := func() {
		selected := -1
		if node := tree.GetCurrentNode(); node != nil {
			if i, ok := node.GetReference().(int); ok {
				selected = i
			}
		}

		root.ClearChildren()
		var first, current *tview.TreeNode
		for _, g := range groupFailures(results.Details, hideResolved) {
			groupNode := tview.NewTreeNode(fmt.Sprintf("%s tests", g.category.Title())).
				SetColor(tcell.ColorYellow).
				SetSelectable(false)
			root.AddChild(groupNode)
			for _, c := range g.classes {
				classNode := tview.NewTreeNode(tview.Escape(c.id)).
					SetColor(tcell.ColorDarkCyan).
					SetSelectable(false)
				groupNode.AddChild(classNode)
				for _, i := range c.indexes {
					leaf := tview.NewTreeNode(leafText(i)).SetReference(i).SetSelectable(true)
					classNode.AddChild(leaf)
					if first == nil {
						first = leaf
					}
					if i == selected {
						current = leaf
					}
				}
			}
		}
		if current == nil {
			current = first
		}
		tree.SetCurrentNode(current)
		updateHeader()
		showFailure(current)
	}

	toggleResolved := func() {
		node := tree.GetCurrentNode()
		if node == nil {
			return
		}
		i, ok := node.GetReference().(int)
		if !ok {
			return
		}
		results.Details[i].Resolved = !results.Details[i].Resolved
		if err := ev.storage.SaveOutput(results); err != nil {
			log.WithError(err).Debug("could not save resolved status")
		}
		if hideResolved {
			rebuild()
			return
		}
		node.SetText(leafText(i))
		updateHeader()
		showFailure(node)
	}

	tree.SetChangedFunc(showFailure)
	tree.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r', 'R':
				toggleResolved()
				return nil
			case 'h', 'H':
				hideResolved = !hideResolved
				rebuild()
				return nil
			case 'q', 'Q':
				app.Stop()
				return nil
			}
		}
		return event
	})
	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(tree)
			return nil
		}
		return event
	})

	rebuild()

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsView, 0, 1, false)
	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(tree, 0, 1, true).
		AddItem(rightSide, 0, 2, false)
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(footerView, 1, 0, false)

	if err := app.SetRoot(layout, true).SetFocus(tree).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// formatFailureDetails formats a test failure using tview color tags
func (ev *ErrorViewer) formatFailureDetails(failure domain.TestFailure) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "[red]✗ %s: %s[white]\n\n", failure.Kind, tview.Escape(failure.TestName))
	fmt.Fprintf(&builder, "[cyan]Class: %s.%s[white]\n", tview.Escape(failure.Module), tview.Escape(failure.ClassName))
	if failure.FilePath != "" {
		fmt.Fprintf(&builder, "[cyan]File: %s[white]\n", tview.Escape(failure.FilePath))
	}
	if failure.Category != "" {
		fmt.Fprintf(&builder, "[cyan]Category: %s[white]\n", failure.Category)
	}
	builder.WriteString("\n")

	if failure.Message != "" {
		fmt.Fprintf(&builder, "[yellow]Message:[white]\n%s\n\n", tview.Escape(failure.Message))
	}

	if len(failure.Traceback) > 0 {
		builder.WriteString("[yellow]Traceback:[white]\n")
		for _, line := range failure.Traceback {
			fmt.Fprintf(&builder, "  %s\n", tview.Escape(line))
		}
	}

	return builder.String()
}

// formatFailureStats formats the header line of a failure
func (ev *ErrorViewer) formatFailureStats(failure domain.TestFailure, number int) string {
	module := failure.Module
	if module == "" {
		module = "unknown module"
	}

	testCase := failure.TestName
	if testCase == "" {
		testCase = fmt.Sprintf("test %d", number)
	}

	return fmt.Sprintf("[cyan]test:[white] [yellow]%s.%s[white].[yellow]%s[white]\n",
		tview.Escape(module), tview.Escape(failure.ClassName), tview.Escape(testCase))
}
