package main

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/lerobot-record/pkg/robot"
	"github.com/gwillem/lerobot-record/pkg/trajectory"
)

type ListCommand struct {
	Dir string `long:"dir" description:"Records directory (default from config)"`
}

func (c *ListCommand) Execute(args []string) error {
	dir := c.Dir
	hz := robot.DefaultHz
	if cfg, err := robot.LoadConfig(); err == nil {
		if dir == "" {
			dir = cfg.RecordDir
		}
		hz = cfg.Hz
	}
	if dir == "" {
		dir = robot.DefaultRecordDir
	}

	store, err := trajectory.NewStore(dir)
	if err != nil {
		log.Fatalf("Failed to open records dir: %v", err)
	}

	entries, err := store.List()
	if err != nil {
		log.Fatalf("Failed to list recordings: %v", err)
	}

	if len(entries) == 0 {
		fmt.Printf("No recordings in %s.\n", dir)
		return nil
	}

	tick := time.Second / time.Duration(hz)

	headerCellStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(entries))
	corrupt := make([]bool, 0, len(entries))
	for _, e := range entries {
		frames := fmt.Sprintf("%d", e.Frames)
		duration := (time.Duration(e.Frames) * tick).Round(time.Millisecond).String()
		if e.Frames < 0 {
			frames = "corrupt"
			duration = "-"
		}
		corrupt = append(corrupt, e.Frames < 0)
		rows = append(rows, []string{
			e.Name,
			frames,
			duration,
			fmt.Sprintf("%d B", e.Size),
			e.ModTime.Format("2006-01-02 15:04:05"),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Recording", "Frames", fmt.Sprintf("Duration @%d Hz", hz), "Size", "Modified").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			if row >= 0 && row < len(corrupt) && corrupt[row] {
				return badStyle
			}
			return cellStyle
		})

	fmt.Println(t.Render())
	return nil
}
