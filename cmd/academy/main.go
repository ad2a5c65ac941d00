package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFile = "academyd.pid"
	logFile = "academyd.log"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "config":
		err = cmdConfig()
	case "curriculum", "ls":
		err = cmdCurriculum()
	case "lesson":
		err = cmdLesson(args)
	case "open":
		err = cmdOpen(args)
	case "run":
		err = cmdRun(args)
	case "test":
		err = cmdTest(args)
	case "hint":
		err = cmdHint()
	case "next":
		err = cmdNext()
	case "dashboard":
		err = cmdDashboard()
	case "achievements":
		err = cmdAchievements()
	case "activity":
		err = cmdActivity(args)
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("academy %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ESP8266 Academy - MicroPython lessons on a simulated board

Usage:
  academy <command> [arguments]

Setup Commands:
  init            Create ~/.academy and a default config
  config          Show current configuration

Daemon Commands:
  start           Start the academy daemon
  stop            Stop the academy daemon
  status          Show daemon status
  logs            View daemon logs

Learning Commands:
  curriculum      List modules and lessons
  lesson <id>     Show a lesson's theory and tests
  open <id>       Open a lesson in the editor
  run [file]      Run code on the simulated ESP8266
  test [file]     Grade code against the open lesson
  hint            Show a hint for the open lesson
  next            Move to the next lesson

Progress Commands:
  dashboard       Show XP, level, streak and recent activity
  achievements    List badges
  activity        Show the activity log (sqlite backend)
  activity follow Stream activity from RabbitMQ

Integration Commands:
  mcp             Start MCP server on stdio

Other:
  help            Show this help message
  version         Show version information

Examples:
  academy start               # Start daemon
  academy open 1.1            # Open the first lesson
  academy test main.py        # Grade main.py
  academy mcp                 # Start MCP server for an editor`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
