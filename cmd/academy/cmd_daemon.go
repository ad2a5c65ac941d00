package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/academy/internal/config"
	"gopkg.in/yaml.v3"
)

// cmdInit creates the academy directory and a default config
func cmdInit() error {
	fmt.Print("Creating ~/.academy directory structure... ")
	dir, err := config.EnsureAcademyDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfigTo(dir, config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	fmt.Println()
	fmt.Println("Next: 'academy start' then 'academy open 1.1'")
	return nil
}

// cmdConfig prints the effective configuration without secrets
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Storage.Redis.Password = ""
	if cfg.Events.AMQPURL != "" {
		cfg.Events.AMQPURL = "(set)"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir, _ := config.AcademyDir()
	fmt.Println(mutedStyle.Render("# " + filepath.Join(dir, "config.yaml")))
	fmt.Print(string(data))
	return nil
}

// cmdStart starts the daemon in the background
func cmdStart() error {
	c := newClient(daemonAddr())
	if c.healthy() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	dir, err := config.EnsureAcademyDir()
	if err != nil {
		return fmt.Errorf("setup academy directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := daemonCommand(daemonPath, dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if c.healthy() {
			fmt.Println(" ✓")
			fmt.Printf("Academy running at %s\n", c.base)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'academy logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	c := newClient(daemonAddr())
	if !c.healthy() {
		fmt.Println("Daemon is not running")
		return nil
	}

	dir, err := config.AcademyDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !c.healthy() {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

// cmdStatus shows daemon status
func cmdStatus() error {
	c := newClient(daemonAddr())
	if !c.healthy() {
		fmt.Println("Status: stopped")
		return nil
	}

	var status struct {
		Status       string `json:"status"`
		Version      string `json:"version"`
		Backend      string `json:"backend"`
		Degraded     bool   `json:"degraded"`
		RepeatPolicy string `json:"repeat_policy"`
		Lessons      int    `json:"lessons"`
		ActivityLog  bool   `json:"activity_log"`
		Uptime       string `json:"uptime"`
		Database     string `json:"database"`
		Schema       int    `json:"schema_version"`
	}
	if err := c.get("/v1/status", &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	backend := status.Backend
	if status.Degraded {
		backend += warningStyle.Render(" (degraded, progress kept in memory)")
	}

	fmt.Printf("Status:    %s\n", successStyle.Render(status.Status))
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Storage:   %s\n", backend)
	if status.Database != "" {
		fmt.Printf("Database:  %s (schema v%d)\n", status.Database, status.Schema)
	}
	fmt.Printf("Repeats:   %s\n", status.RepeatPolicy)
	fmt.Printf("Lessons:   %d\n", status.Lessons)
	fmt.Printf("Activity:  %v\n", status.ActivityLog)
	fmt.Printf("Uptime:    %s\n", status.Uptime)
	fmt.Printf("Address:   %s\n", c.base)

	return nil
}

// cmdLogs shows the tail of the daemon log
func cmdLogs() error {
	dir, err := config.AcademyDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, "logs", logFile)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek to end and go back ~4KB for recent logs
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := info.Size() - 4096
	if offset < 0 {
		offset = 0
	}
	if _, err := file.Seek(offset, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		// Skip the partial first line
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

// findDaemonBinary locates the academyd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("academyd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "academyd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{
		"/usr/local/bin/academyd",
		"./academyd",
		"./cmd/academyd/academyd",
	} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("academyd binary not found (build with 'go build ./cmd/academyd')")
}
