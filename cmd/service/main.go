package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ee-insight/utils"
)

var (
	pidDir  = filepath.Join(utils.GetProjectRoot(), "pid")
	pidFile = filepath.Join(pidDir, "ee-insight.pid")
	binFile = filepath.Join(utils.GetProjectRoot(), "bin", "ee-insight")
)

func main() {
	_ = utils.EnsureDirExists(pidDir)
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "start":
		start(os.Args[2:])
	case "stop":
		stop()
	case "reload":
		signalServer(syscall.SIGHUP, "reloaded")
	case "restart":
		stop()
		time.Sleep(1 * time.Second)
		start(os.Args[2:])
	case "status":
		status()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: service start|stop|reload|restart|status [-- server flags]")
	os.Exit(1)
}

func start(args []string) {
	if pid, err := readPID(); err == nil && alive(pid) {
		fmt.Printf("ee-insight already running, pid=%d\n", pid)
		return
	}
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	cmd := exec.Command(binFile, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		fmt.Println("Failed to start:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		fmt.Println("Started but failed to write pid file:", err)
	}
	fmt.Printf("ee-insight started, pid=%d\n", cmd.Process.Pid)
}

func stop() {
	pid, err := readPID()
	if err != nil {
		fmt.Println("Not running")
		return
	}
	// SIGTERM lets the server stop its poll loop and close the store
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		fmt.Println("Failed to stop:", err)
		return
	}
	os.Remove(pidFile)
	fmt.Println("ee-insight stopped.")
}

func signalServer(sig syscall.Signal, done string) {
	pid, err := readPID()
	if err != nil || !alive(pid) {
		fmt.Println("Not running")
		return
	}
	if err := syscall.Kill(pid, sig); err != nil {
		fmt.Printf("Failed to signal pid %d: %v\n", pid, err)
		return
	}
	fmt.Println("ee-insight " + done + ".")
}

func status() {
	pid, err := readPID()
	if err != nil {
		fmt.Println("Not running")
		os.Exit(3)
	}
	if !alive(pid) {
		fmt.Printf("Stale pid file (pid=%d)\n", pid)
		os.Exit(1)
	}
	fmt.Printf("ee-insight running, pid=%d\n", pid)
}

// alive sends signal 0, which only checks the process exists.
func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
