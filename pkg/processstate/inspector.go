package processstate

import (
	stderrors "errors"
	"fmt"
	"os/user"
	"path/filepath"
	"sort"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
)

// Handle is a snapshot of a live OS process
type Handle struct {
	PID      int
	Username string

	// Argv0 is empty when the command line cannot be read, as for zombies
	Argv0  string
	Zombie bool
}

// Matches reports whether the handle is the expected instance: owned by
// username with the expected argv[0], or a zombie
func (h *Handle) Matches(username, argv0 string) bool {
	if h.Zombie {
		return true
	}
	return h.Username == username && h.Argv0 != "" && h.Argv0 == argv0
}

// Inspector reads the OS process table
type Inspector interface {
	// Inspect returns a not-found error when pid does not exist
	Inspect(pid int) (*Handle, error)

	// Alive reports whether pid exists and is not a zombie
	Alive(pid int) (bool, error)

	// FindByName returns PIDs whose process name is the base name of name
	FindByName(name string) ([]int, error)

	// ListeningAddresses returns sorted, deduplicated ip:port pairs that pid
	// and its children listen on
	ListeningAddresses(pid int) ([]string, error)

	// CurrentUser is the name processes must be owned by to match
	CurrentUser() (string, error)
}

type systemInspector struct {
	logger logging.Logger
}

func NewInspector(logger logging.Logger) Inspector {
	return &systemInspector{
		logger: logger,
	}
}

func (i *systemInspector) open(pid int) (*process.Process, error) {
	if pid <= 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid PID %d", pid), nil)
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		if stderrors.Is(err, process.ErrorProcessNotRunning) {
			return nil, errors.NewNotFoundError("process not found", err).WithContext("pid", pid)
		}
		return nil, errors.NewProcessError("failed to open process", err).WithContext("pid", pid)
	}
	return proc, nil
}

func (i *systemInspector) Inspect(pid int) (*Handle, error) {
	proc, err := i.open(pid)
	if err != nil {
		return nil, err
	}

	handle := &Handle{PID: pid}

	status, err := proc.Status()
	if err != nil {
		// gone between lookups
		if running, _ := IsProcessRunning(pid); !running {
			return nil, errors.NewNotFoundError("process not found", err).WithContext("pid", pid)
		}
		return nil, errors.NewProcessError("failed to read process status", err).WithContext("pid", pid)
	}
	for _, s := range status {
		if s == process.Zombie {
			handle.Zombie = true
		}
	}

	if username, err := proc.Username(); err == nil {
		handle.Username = username
	} else {
		i.logger.Debugf("Cannot read process owner, pid: %d, error: %v", pid, err)
	}

	if cmdline, err := proc.CmdlineSlice(); err == nil && len(cmdline) > 0 {
		handle.Argv0 = cmdline[0]
	} else if err != nil {
		i.logger.Debugf("Cannot read process command line, pid: %d, error: %v", pid, err)
	}

	i.logger.Debugf("Inspected process, pid: %d, user: %s, argv0: %s, zombie: %t",
		pid, handle.Username, handle.Argv0, handle.Zombie)
	return handle, nil
}

func (i *systemInspector) Alive(pid int) (bool, error) {
	handle, err := i.Inspect(pid)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return !handle.Zombie, nil
}

func (i *systemInspector) FindByName(name string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, errors.NewProcessError("failed to list processes", err)
	}

	base := filepath.Base(name)
	var pids []int
	for _, proc := range procs {
		procName, err := proc.Name()
		if err != nil {
			continue
		}
		if procName == base {
			pids = append(pids, int(proc.Pid))
		}
	}
	i.logger.Debugf("Processes found by name, name: %s, pids: %v", base, pids)
	return pids, nil
}

func (i *systemInspector) ListeningAddresses(pid int) ([]string, error) {
	proc, err := i.open(pid)
	if err != nil {
		return nil, err
	}

	procs := []*process.Process{proc}
	children, err := proc.Children()
	if err != nil && !stderrors.Is(err, process.ErrorNoChildren) {
		i.logger.Debugf("Cannot list process children, pid: %d, error: %v", pid, err)
	}
	procs = append(procs, children...)

	seen := make(map[string]bool)
	var addresses []string
	for _, p := range procs {
		connections, err := p.Connections()
		if err != nil {
			i.logger.Debugf("Cannot list process connections, pid: %d, error: %v", p.Pid, err)
			continue
		}
		for _, conn := range connections {
			if conn.Status != "LISTEN" {
				continue
			}
			address := fmt.Sprintf("%s:%d", conn.Laddr.IP, conn.Laddr.Port)
			if !seen[address] {
				seen[address] = true
				addresses = append(addresses, address)
			}
		}
	}
	sort.Strings(addresses)
	return addresses, nil
}

func (i *systemInspector) CurrentUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", errors.NewInternalError("cannot determine current user", err)
	}
	return u.Username, nil
}
