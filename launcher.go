package viewpoint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// launchOptions configures Launch. Its flag list is the teacher's
// allocate.go DefaultExecAllocatorOptions, carried over verbatim: these
// are the flags Puppeteer ships for headless automation, trimmed of
// features that tend to interfere with scraping/testing workloads.
type launchOptions struct {
	execPath  string
	profile   profileMode
	userDataDir string
	flags     map[string]interface{}
	env       []string
	combined  io.Writer
	timeout   time.Duration
}

// profileMode selects how Launch manages the browser's user-data-dir, per
// SPEC_FULL.md's profile modes.
type profileMode int

const (
	// ProfileTemp creates a fresh temporary profile and removes it on Close.
	ProfileTemp profileMode = iota
	// ProfileTempFromTemplate copies a template directory into a fresh
	// temporary profile before launch, and removes the copy on Close.
	ProfileTempFromTemplate
	// ProfilePersist uses the given directory directly and leaves it on disk.
	ProfilePersist
	// ProfileSystem launches with no --user-data-dir override, using
	// Chromium's own default profile location.
	ProfileSystem
)

// defaultLaunchFlags mirrors the teacher's DefaultExecAllocatorOptions.
var defaultLaunchFlags = map[string]interface{}{
	"disable-background-networking":                      true,
	"enable-features":                                    "NetworkService,NetworkServiceInProcess",
	"disable-background-timer-throttling":                true,
	"disable-backgrounding-occluded-windows":              true,
	"disable-breakpad":                                    true,
	"disable-client-side-phishing-detection":              true,
	"disable-default-apps":                                true,
	"disable-dev-shm-usage":                               true,
	"disable-extensions":                                  true,
	"disable-features":                                    "site-per-process,TranslateUI,BlinkGenPropertyTrees",
	"disable-hang-monitor":                                true,
	"disable-ipc-flooding-protection":                      true,
	"disable-popup-blocking":                              true,
	"disable-prompt-on-repost":                            true,
	"disable-renderer-backgrounding":                      true,
	"disable-sync":                                        true,
	"force-color-profile":                                 "srgb",
	"metrics-recording-only":                               true,
	"safebrowsing-disable-auto-update":                     true,
	"password-store":                                      "basic",
	"use-mock-keychain":                                   true,
	"no-first-run":                                         true,
	"no-default-browser-check":                             true,
	"headless":                                            true,
	"mute-audio":                                           true,
	"remote-debugging-port":                                0,
}

// LaunchOption configures Launch.
type LaunchOption func(*launchOptions)

// WithExecPath sets the Chromium/Chrome binary to launch, overriding
// findExecPath's search.
func WithExecPath(path string) LaunchOption {
	return func(o *launchOptions) { o.execPath = path }
}

// WithFlag sets a command-line flag; value true emits a bare "--name",
// false/"" omits it, and anything else emits "--name=value".
func WithFlag(name string, value interface{}) LaunchOption {
	return func(o *launchOptions) { o.flags[name] = value }
}

// WithEnv adds an environment variable ("KEY=value") to the launched process.
func WithEnv(kv string) LaunchOption {
	return func(o *launchOptions) { o.env = append(o.env, kv) }
}

// WithHeadful disables headless mode.
func WithHeadful() LaunchOption {
	return func(o *launchOptions) { delete(o.flags, "headless") }
}

// WithWindowSize sets the initial browser window size.
func WithWindowSize(w, h int) LaunchOption {
	return func(o *launchOptions) { o.flags["window-size"] = fmt.Sprintf("%d,%d", w, h) }
}

// WithProxyServer routes all traffic through the given proxy.
func WithProxyServer(addr string) LaunchOption {
	return func(o *launchOptions) { o.flags["proxy-server"] = addr }
}

// WithProfilePersist launches with dir as a persistent, caller-owned profile.
func WithProfilePersist(dir string) LaunchOption {
	return func(o *launchOptions) { o.profile = ProfilePersist; o.userDataDir = dir }
}

// WithProfileFromTemplate copies dir into a fresh temporary profile before
// launch, removing the copy on Close.
func WithProfileFromTemplate(dir string) LaunchOption {
	return func(o *launchOptions) { o.profile = ProfileTempFromTemplate; o.userDataDir = dir }
}

// WithSystemProfile uses Chromium's own default profile location instead
// of an isolated one.
func WithSystemProfile() LaunchOption {
	return func(o *launchOptions) { o.profile = ProfileSystem }
}

// WithCombinedOutput copies the launched process's stdout/stderr to w.
func WithCombinedOutput(w io.Writer) LaunchOption {
	return func(o *launchOptions) { o.combined = w }
}

// WithLaunchTimeout bounds how long Launch waits for the "DevTools
// listening on" line before giving up.
func WithLaunchTimeout(d time.Duration) LaunchOption {
	return func(o *launchOptions) { o.timeout = d }
}

// Launch starts a new Chromium process and connects to it, applying opts
// on top of the default flag set. This is the direct replacement for the
// teacher's allocate.go ExecAllocator.Allocate, restructured as a function
// that returns a ready *Browser instead of one that gets wired up later
// through a context.Value Allocator.
func Launch(ctx context.Context, browserOpts []BrowserOption, opts ...LaunchOption) (*Browser, error) {
	o := &launchOptions{
		flags:   copyFlags(defaultLaunchFlags),
		timeout: 20 * time.Second,
	}
	for _, f := range opts {
		f(o)
	}

	if o.execPath == "" {
		path, err := findExecPath()
		if err != nil {
			return nil, ErrChromiumNotFound
		}
		o.execPath = path
	}

	var removeDir bool
	switch o.profile {
	case ProfileSystem:
		// leave --user-data-dir unset
	case ProfilePersist:
		o.flags["user-data-dir"] = o.userDataDir
	case ProfileTempFromTemplate:
		dir, err := cloneProfileTemplate(o.userDataDir)
		if err != nil {
			return nil, err
		}
		o.flags["user-data-dir"] = dir
		o.userDataDir = dir
		removeDir = true
	default:
		dir, err := os.MkdirTemp("", "viewpoint-profile-")
		if err != nil {
			return nil, err
		}
		o.flags["user-data-dir"] = dir
		o.userDataDir = dir
		removeDir = true
	}

	if os.Geteuid() == 0 {
		o.flags["no-sandbox"] = true
	}

	args := buildArgs(o.flags)
	cmd := exec.CommandContext(ctx, o.execPath, args...)
	cmd.Env = append(os.Environ(), o.env...)
	allocateCmdOptions(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, wrapCdp("start chromium", err)
	}

	wsURL, err := readDevtoolsURL(stderr, stdout, o.combined, o.timeout)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	b, err := NewBrowser(ctx, wsURL, browserOpts...)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	b.process = cmd.Process
	b.userDataDir = o.userDataDir
	b.removeUserDataDir = removeDir

	return b, nil
}

var devtoolsListeningRE = regexp.MustCompile(`^DevTools listening on (ws://.*)$`)

// readDevtoolsURL scans stderr (where Chromium prints its startup banner)
// for the "DevTools listening on" line, forwarding all stdout/stderr to
// forward if set, and gives up after timeout.
func readDevtoolsURL(stderr, stdout io.Reader, forward io.Writer, timeout time.Duration) (string, error) {
	found := make(chan string, 1)
	scanOne := func(r io.Reader) {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := sc.Text()
			if forward != nil {
				fmt.Fprintln(forward, line)
			}
			if m := devtoolsListeningRE.FindStringSubmatch(line); m != nil {
				select {
				case found <- m[1]:
				default:
				}
			}
		}
	}
	go scanOne(stderr)
	go scanOne(stdout)

	select {
	case url := <-found:
		return url, nil
	case <-time.After(timeout):
		return "", ErrLaunchTimeout
	}
}

func copyFlags(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func buildArgs(flags map[string]interface{}) []string {
	var args []string
	for name, v := range flags {
		switch val := v.(type) {
		case bool:
			if val {
				args = append(args, "--"+name)
			}
		case int:
			args = append(args, "--"+name+"="+strconv.Itoa(val))
		case string:
			if val == "" {
				continue
			}
			args = append(args, "--"+name+"="+val)
		default:
			args = append(args, fmt.Sprintf("--%s=%v", name, val))
		}
	}
	args = append(args, "about:blank")
	return args
}

func cloneProfileTemplate(src string) (string, error) {
	dst, err := os.MkdirTemp("", "viewpoint-profile-")
	if err != nil {
		return "", err
	}
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
	if err != nil {
		os.RemoveAll(dst)
		return "", err
	}
	return dst, nil
}

// findExecPath searches the usual install locations for a Chromium-family
// browser, in the same order across platforms the teacher's allocate.go used.
func findExecPath() (string, error) {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		candidates = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		candidates = []string{
			"headless-shell",
			"chromium",
			"chromium-browser",
			"google-chrome",
			"google-chrome-stable",
			"google-chrome-beta",
			"google-chrome-unstable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
		}
	}
	for _, c := range candidates {
		if strings.Contains(c, string(os.PathSeparator)) {
			if _, err := os.Stat(c); err == nil {
				return c, nil
			}
			continue
		}
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", ErrChromiumNotFound
}
