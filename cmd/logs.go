package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/watchpost/cli"
	"github.com/grovetools/watchpost/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd shows the station log.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the station log",
		Long:  "Prints today's station log, or the file configured under logging.file.path.",
		Example: `# Follow the log
watchpost logs -f

# Last 50 entries as JSON lines
watchpost logs --tail 50 --json`,
		Args: cobra.NoArgs,
		RunE: runLogs,
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log")
	cmd.Flags().String("file", "", "Read this log file instead")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = logFilePath(cmd)
	}

	out := cmd.OutOrStdout()
	emit := func(line string) {
		if opts.JSONOutput {
			printLogJSON(out, line)
		} else {
			printLogText(out, line)
		}
	}

	lines, err := lastLines(path, tailLines)
	if err != nil && !(follow && os.IsNotExist(err)) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, line := range lines {
		emit(line)
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-cmd.Context().Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			if text := strings.TrimRight(line.Text, "\r"); text != "" {
				emit(text)
			}
		}
	}
}

// logFilePath resolves the log file the station writes to.
func logFilePath(cmd *cobra.Command) string {
	var logCfg logging.Config
	if cfg, err := cli.LoadConfig(cmd); err == nil {
		_ = cfg.UnmarshalExtension("logging", &logCfg)
	}
	if logCfg.File.Path != "" {
		return logging.ExpandPath(logCfg.File.Path)
	}
	return logging.FilePath(time.Now())
}

// lastLines returns the non-empty lines of path. n < 0 means all of them.
func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func printLogJSON(w io.Writer, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		entry = map[string]interface{}{"raw_line": line}
	}
	data, _ := json.Marshal(entry)
	fmt.Fprintln(w, string(data))
}

// printLogText pretty-prints JSON log entries; other lines pass through.
func printLogText(w io.Writer, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		fmt.Fprintln(w, line)
		return
	}
	t := cli.DefaultTheme

	ts, _ := entry["time"].(string)
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)
	component, _ := entry["component"].(string)

	timeStr := ts
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		timeStr = parsed.Format("15:04:05")
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = t.Error
	case "warning":
		levelStyle = t.Warning
	case "info":
		levelStyle = t.Info
	default:
		levelStyle = t.Muted
	}

	var keys []string
	for k := range entry {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", t.Muted.Render(k), entry[k]))
	}

	fmt.Fprintf(w, "%s %s %s %s %s\n",
		timeStr,
		levelStyle.Render(strings.ToUpper(level)),
		t.Accent.Render("["+component+"]"),
		msg,
		strings.Join(fields, " "),
	)
}
