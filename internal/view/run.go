package view

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"sessionlog/internal/format"
	"sessionlog/internal/model"
)

// Source streams the events of one transcript in file order.
type Source func(fn func(model.Event) error) error

// Options defines the configurable parameters for rendering a view.
type Options struct {
	Source       Source
	Path         string
	Format       string
	Wrap         int
	MaxEvents    int
	KindArg      string
	ContentArg   string
	AllFilter    bool
	ForceColor   bool
	ForceNoColor bool
	RawFile      bool
	Out          io.Writer
	OutFile      *os.File
}

// Run renders a transcript according to the provided options.
func Run(opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if opts.RawFile {
		return copyFile(opts.Out, opts.Path)
	}
	if opts.Source == nil {
		return fmt.Errorf("no transcript source")
	}

	filters, err := buildViewFilters(opts.AllFilter, opts.KindArg, opts.ContentArg)
	if err != nil {
		return err
	}

	formatMode := strings.ToLower(opts.Format)
	if formatMode == "" {
		formatMode = "text"
	}

	processEvents := func(fn func(model.Event) error) error {
		return opts.Source(func(event model.Event) error {
			filtered, ok := applyFilters(event, filters)
			if !ok {
				return nil
			}
			return fn(filtered)
		})
	}

	collect := func() ([]model.Event, error) {
		if opts.MaxEvents > 0 {
			ring := newEventRing(opts.MaxEvents)
			err := processEvents(func(event model.Event) error {
				ring.push(event)
				return nil
			})
			return ring.slice(), err
		}
		var events []model.Event
		err := processEvents(func(event model.Event) error {
			events = append(events, event)
			return nil
		})
		return events, err
	}

	switch formatMode {
	case "text":
		useColor := resolveColorChoice(opts)
		if opts.MaxEvents == 0 {
			count := 0
			return processEvents(func(event model.Event) error {
				if count > 0 {
					fmt.Fprintln(opts.Out)
				}
				printEvent(opts.Out, event, count+1, opts.Wrap, useColor)
				count++
				return nil
			})
		}
		events, err := collect()
		if err != nil {
			return err
		}
		for idx, event := range events {
			if idx > 0 {
				fmt.Fprintln(opts.Out)
			}
			printEvent(opts.Out, event, idx+1, opts.Wrap, useColor)
		}
		return nil

	case "raw":
		if opts.MaxEvents == 0 {
			return processEvents(func(event model.Event) error {
				_, err := fmt.Fprintln(opts.Out, event.Raw)
				return err
			})
		}
		events, err := collect()
		if err != nil {
			return err
		}
		for _, event := range events {
			fmt.Fprintln(opts.Out, event.Raw)
		}
		return nil

	case "chat":
		colorEnabled := resolveColorChoice(opts)
		width := determineWidth(opts.OutFile, opts.Wrap)

		events, err := collect()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		lines := renderChatTranscript(events, width, colorEnabled)
		if len(lines) == 0 {
			return nil
		}
		if opts.OutFile != nil && isatty.IsTerminal(opts.OutFile.Fd()) {
			return pipeThroughPager(lines, colorEnabled)
		}
		return writeLines(opts.Out, lines)

	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

type viewFilters struct {
	kinds        map[model.EventKind]struct{}
	contentKinds map[model.ContentKind]struct{}
	includeMeta  bool
}

func buildViewFilters(allFilter bool, kindArg, contentArg string) (viewFilters, error) {
	// --all disables every filter
	if allFilter {
		return viewFilters{includeMeta: true}, nil
	}

	var filters viewFilters

	kindFilter, kindProvided, err := parseKindArg(kindArg)
	if err != nil {
		return filters, err
	}
	contentFilter, _, err := parseContentArg(contentArg)
	if err != nil {
		return filters, err
	}

	if kindProvided {
		filters.kinds = kindFilter
		_, filters.includeMeta = kindFilter[model.EventMeta]
		if kindFilter == nil {
			filters.includeMeta = true
		}
	} else {
		filters.kinds = map[model.EventKind]struct{}{
			model.EventUser:      {},
			model.EventAssistant: {},
		}
	}
	filters.contentKinds = contentFilter

	return filters, nil
}

func parseKindArg(arg string) (map[model.EventKind]struct{}, bool, error) {
	values := parseCSV(arg)
	if len(values) == 0 {
		return nil, false, nil
	}
	if len(values) == 1 && values[0] == "all" {
		return nil, true, nil
	}

	set := make(map[model.EventKind]struct{}, len(values))
	for _, token := range values {
		kind := model.EventKind(token)
		if !kind.Valid() {
			return nil, true, fmt.Errorf("unknown event kind %q", token)
		}
		set[kind] = struct{}{}
	}
	return set, true, nil
}

func parseContentArg(arg string) (map[model.ContentKind]struct{}, bool, error) {
	values := parseCSV(arg)
	if len(values) == 0 {
		return nil, false, nil
	}
	if len(values) == 1 && values[0] == "all" {
		return nil, true, nil
	}

	set := make(map[model.ContentKind]struct{}, len(values))
	for _, token := range values {
		kind := model.ContentKind(token)
		if !kind.Valid() {
			return nil, true, fmt.Errorf("unknown content kind %q", token)
		}
		set[kind] = struct{}{}
	}
	return set, true, nil
}

func parseCSV(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(strings.ToLower(part))
		if token != "" {
			output = append(output, token)
		}
	}
	return output
}

// applyFilters reports whether event is shown and returns it with content
// blocks outside the content filter removed.
func applyFilters(event model.Event, filters viewFilters) (model.Event, bool) {
	if event.IsMeta && !filters.includeMeta {
		return event, false
	}
	if filters.kinds != nil {
		if _, ok := filters.kinds[event.Kind]; !ok {
			return event, false
		}
	}

	if filters.contentKinds == nil || event.Message == nil || len(event.Message.Content) == 0 {
		return event, true
	}

	kept := make([]model.Content, 0, len(event.Message.Content))
	for _, c := range event.Message.Content {
		if _, ok := filters.contentKinds[c.Kind]; ok {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return event, false
	}
	msg := *event.Message
	msg.Content = kept
	event.Message = &msg
	return event, true
}

type eventRing struct {
	data   []model.Event
	start  int
	length int
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		return &eventRing{}
	}
	return &eventRing{data: make([]model.Event, capacity)}
}

func (r *eventRing) push(event model.Event) {
	if len(r.data) == 0 {
		return
	}
	idx := (r.start + r.length) % len(r.data)
	r.data[idx] = event
	if r.length < len(r.data) {
		r.length++
		return
	}
	r.start = (r.start + 1) % len(r.data)
}

func (r *eventRing) slice() []model.Event {
	if r.length == 0 {
		return nil
	}
	result := make([]model.Event, r.length)
	for i := 0; i < r.length; i++ {
		result[i] = r.data[(r.start+i)%len(r.data)]
	}
	return result
}

func determineWidth(out *os.File, wrap int) int {
	if wrap > 0 {
		return wrap
	}
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func pipeThroughPager(lines []string, colorEnabled bool) error {
	text := strings.Join(lines, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	pagerCmd := os.Getenv("PAGER")
	var cmd *exec.Cmd
	if pagerCmd == "" {
		args := []string{"less"}
		if colorEnabled {
			args = append(args, "-R")
		}
		cmd = exec.Command(args[0], args[1:]...) // #nosec G204
	} else {
		cmd = exec.Command("sh", "-c", pagerCmd) // #nosec G204
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create pager pipe: %w", err)
	}
	go func() {
		defer stdin.Close()
		io.WriteString(stdin, text) //nolint:errcheck
	}()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run pager: %w", err)
	}

	return nil
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(out io.Writer, event model.Event, index int, wrap int, useColor bool) {
	label := strings.ToLower(format.EventLabel(event))
	role := event.Role()

	ts := "-"
	if !event.Timestamp.IsZero() {
		ts = event.Timestamp.Format(time.RFC3339)
	}
	headerPlain := fmt.Sprintf("[#%03d] %s | %s", index, label, ts)

	indexText := fmt.Sprintf("#%03d", index)
	roleText := label
	tsText := ts
	separator := "|"

	if useColor {
		indexText = colorize(true, ansiBoldWhite, indexText)
		roleText = colorize(true, roleColor(role), roleText)
		tsText = colorize(true, ansiTimestamp, tsText)
		separator = colorize(true, ansiSeparator, "|")
	}

	header := fmt.Sprintf("[%s] %s %s %s", indexText, roleText, separator, tsText)
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, strings.Repeat("-", len(headerPlain)))

	lines := format.RenderEventLines(event, wrap)
	if len(lines) == 0 {
		prefix := "|"
		if useColor {
			prefix = colorize(true, ansiSeparator, "|")
		}
		fmt.Fprintf(out, "%s %s\n", prefix, "(no content)")
		return
	}
	linePrefix := "| "
	emptyPrefix := "|"
	if useColor {
		separatorColor := colorize(true, ansiSeparator, "|")
		linePrefix = separatorColor + " "
		emptyPrefix = separatorColor
	}
	for _, line := range lines {
		if line == "" {
			fmt.Fprintln(out, emptyPrefix)
			continue
		}
		fmt.Fprintf(out, "%s%s\n", linePrefix, line)
	}
}

const (
	ansiReset     = "\x1b[0m"
	ansiBoldWhite = "\x1b[1;97m"
	ansiTimestamp = "\x1b[38;5;245m"
	ansiSeparator = "\x1b[38;5;240m"
	ansiAssistant = "\x1b[38;5;44m"
	ansiUser      = "\x1b[38;5;220m"
	ansiTool      = "\x1b[38;5;207m"
	ansiError     = "\x1b[38;5;196m"
)

func colorize(enabled bool, code string, text string) string {
	if !enabled {
		return text
	}
	return code + text + ansiReset
}

func roleColor(role string) string {
	switch model.EventKind(role) {
	case model.EventAssistant:
		return ansiAssistant
	case model.EventUser:
		return ansiUser
	case model.EventSystem, model.EventResult:
		return ansiTool
	case model.EventError:
		return ansiError
	default:
		return ansiSeparator
	}
}

func resolveColorChoice(opts Options) bool {
	if opts.ForceColor {
		return true
	}
	if opts.ForceNoColor {
		return false
	}
	return shouldUseColorAuto(opts.Out)
}

func shouldUseColorAuto(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(dst, f)
	return err
}
