package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// notificationBus is the freedesktop notification service on the user bus.
// Calls go through busctl so no DBus library is linked in.
var notificationBus = struct{ dest, path string }{
	dest: "org.freedesktop.Notifications",
	path: "/org/freedesktop/Notifications",
}

// Notifications that stay up longer than this are sent as critical so the
// desktop does not expire them early.
const criticalAfterMS = 5000

// notifyArgs builds the busctl arguments for Notify(app_name, replaces_id,
// app_icon, summary, body, actions, hints, expire_timeout).
func notifyArgs(appName string, replaceID uint32, summary string, timeoutMS int) []string {
	urgency := "1"
	if timeoutMS > criticalAfterMS {
		urgency = "2"
	}
	return []string{
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"", summary, "",
		"0",
		"1", "urgency", "y", urgency,
		strconv.Itoa(timeoutMS),
	}
}

// parseNotificationID reads a busctl reply such as "u 42".
func parseNotificationID(reply string) (uint32, error) {
	kind, value, ok := strings.Cut(reply, " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("desktop notify: unexpected reply %q", reply)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: bad id in %q: %w", reply, err)
	}
	return uint32(id), nil
}

// desktopNotify shows or replaces a notification and returns its ID.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	reply, err := busctl(ctx, "Notify", notifyArgs(appName, replaceID, summary, timeoutMS)...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}
	return parseNotificationID(reply)
}

func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return fmt.Errorf("desktop dismiss %d: %w", id, err)
	}
	return nil
}

func busctl(ctx context.Context, method string, args ...string) (string, error) {
	argv := []string{"--user", "call", notificationBus.dest, notificationBus.path, notificationBus.dest, method}
	cmd := exec.CommandContext(ctx, "busctl", append(argv, args...)...)
	out, err := cmd.CombinedOutput()
	reply := strings.TrimSpace(string(out))
	switch {
	case err != nil && reply != "":
		return "", fmt.Errorf("%w: %s", err, reply)
	case err != nil:
		return "", err
	}
	return reply, nil
}
