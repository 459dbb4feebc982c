package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"

	portalTimeout = 120 * time.Second // user may need time to pick a screen
)

// pipeWireSource is a streamSource fed by gst-launch from a ScreenCast
// portal session. The D-Bus connection must stay open for the session to
// live.
type pipeWireSource struct {
	*streamSource
	dbConn *dbus.Conn
	pwFile *os.File
}

func newPipeWireSource(cfg *Config) (FrameSource, error) {
	if !hasExecutable("gst-launch-1.0") {
		return nil, fmt.Errorf("gst-launch-1.0 not found")
	}

	dbConn, nodeID, pwFile, err := acquirePipeWireNode()
	if err != nil {
		return nil, fmt.Errorf("pipewire portal: %w", err)
	}

	format := cfg.PixelFormat()
	ctx, cancel := context.WithCancel(context.Background())
	// ExtraFiles[0] becomes fd 3 in the child.
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", gstArgs(nodeID, cfg.CaptureWidth, cfg.CaptureHeight, rawFormats[format].gst)...)
	cmd.ExtraFiles = []*os.File{pwFile}

	// The portal hides the monitor size; fall back to X11 when available.
	scale := 1.0
	if w, _, err := screenSize(); err == nil && w > 0 {
		scale = float64(cfg.CaptureWidth) / float64(w)
	}

	stream, err := startStream("gstreamer", cancel, cmd, cfg.CaptureWidth, cfg.CaptureHeight, format, scale)
	if err != nil {
		pwFile.Close()
		dbConn.Close()
		return nil, err
	}
	return &pipeWireSource{streamSource: stream, dbConn: dbConn, pwFile: pwFile}, nil
}

func gstArgs(nodeID uint32, width, height int, format string) []string {
	return []string{"-q",
		"pipewiresrc", fmt.Sprintf("path=%d", nodeID), "fd=3",
		"!", "videoconvert",
		"!", "videoscale",
		"!", fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d", format, width, height),
		"!", "fdsink", "fd=1",
	}
}

func (s *pipeWireSource) Close() error {
	err := s.streamSource.Close()
	s.pwFile.Close()
	s.dbConn.Close()
	return err
}

// portalRequest calls a ScreenCast method that answers through a Request
// object and waits for its Response signal.
type portalRequest struct {
	conn   *dbus.Conn
	portal dbus.BusObject
	sender string
}

func (p portalRequest) call(method, token string, args ...interface{}) (map[string]dbus.Variant, error) {
	reqPath := dbus.ObjectPath(fmt.Sprintf("%s/request/%s/%s", portalPath, p.sender, token))
	sigCh := subscribeSignal(p.conn, reqPath)
	defer p.conn.RemoveSignal(sigCh)

	if call := p.portal.Call(screenCastIface+"."+method, 0, args...); call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}
	resp, err := waitForResponse(sigCh, portalTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	return resp, nil
}

// acquirePipeWireNode negotiates a ScreenCast session through the XDG
// Desktop Portal. It returns the D-Bus connection, which must stay open,
// the PipeWire node id and the PipeWire remote fd for GStreamer.
func acquirePipeWireNode() (*dbus.Conn, uint32, *os.File, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	nodeID, pwFile, err := negotiateScreenCast(conn)
	if err != nil {
		conn.Close()
		return nil, 0, nil, err
	}
	return conn, nodeID, pwFile, nil
}

func negotiateScreenCast(conn *dbus.Conn) (uint32, *os.File, error) {
	if !conn.SupportsUnixFDs() {
		return 0, nil, fmt.Errorf("D-Bus connection does not support Unix FD passing")
	}

	portal := conn.Object(portalDest, dbus.ObjectPath(portalPath))
	req := portalRequest{conn: conn, portal: portal, sender: senderToToken(conn.Names()[0])}

	resp, err := req.call("CreateSession", "colco_req_create", map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant("colco_req_create"),
		"session_handle_token": dbus.MakeVariant("colco_session"),
	})
	if err != nil {
		return 0, nil, err
	}
	handle, ok := resp["session_handle"]
	if !ok {
		return 0, nil, fmt.Errorf("CreateSession: no session_handle in response")
	}
	handleStr, ok := handle.Value().(string)
	if !ok {
		return 0, nil, fmt.Errorf("CreateSession: unexpected session_handle type %T", handle.Value())
	}
	session := dbus.ObjectPath(handleStr)

	_, err = req.call("SelectSources", "colco_req_select", session, map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant("colco_req_select"),
		"types":        dbus.MakeVariant(uint32(1)), // monitor
		"multiple":     dbus.MakeVariant(false),
	})
	if err != nil {
		return 0, nil, err
	}

	startResp, err := req.call("Start", "colco_req_start", session, "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant("colco_req_start"),
	})
	if err != nil {
		return 0, nil, err
	}
	nodeID, err := extractNodeID(startResp)
	if err != nil {
		return 0, nil, err
	}

	var pwFd dbus.UnixFD
	err = portal.Call(screenCastIface+".OpenPipeWireRemote", 0, session, map[string]dbus.Variant{}).Store(&pwFd)
	if err != nil {
		return 0, nil, fmt.Errorf("OpenPipeWireRemote: %w", err)
	}
	pwFile := os.NewFile(uintptr(pwFd), "pipewire-remote")
	if pwFile == nil {
		return 0, nil, fmt.Errorf("invalid PipeWire fd")
	}
	return nodeID, pwFile, nil
}

// subscribeSignal registers a match for the portal Response signal at
// path and returns the channel that receives it.
func subscribeSignal(conn *dbus.Conn, path dbus.ObjectPath) chan *dbus.Signal {
	ch := make(chan *dbus.Signal, 1)
	conn.Signal(ch)
	conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, path))
	return ch
}

// waitForResponse waits for a portal Response signal and returns its
// results. A non-zero response code means the user denied the request.
func waitForResponse(ch chan *dbus.Signal, timeout time.Duration) (map[string]dbus.Variant, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig := <-ch:
			if sig == nil {
				return nil, fmt.Errorf("signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return nil, fmt.Errorf("portal request denied (code %d)", code)
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("unexpected response type")
			}
			return results, nil
		case <-timer.C:
			return nil, fmt.Errorf("timed out waiting for portal response")
		}
	}
}

// senderToToken converts a unique bus name like ":1.42" to "1_42".
func senderToToken(sender string) string {
	return strings.ReplaceAll(strings.TrimPrefix(sender, ":"), ".", "_")
}

// extractNodeID pulls the PipeWire node id out of the Start response.
// streams is a(ua{sv}); godbus may surface it as [][]interface{} or
// []interface{}.
func extractNodeID(resp map[string]dbus.Variant) (uint32, error) {
	v, ok := resp["streams"]
	if !ok {
		return 0, fmt.Errorf("no streams in Start response")
	}

	var first interface{}
	switch streams := v.Value().(type) {
	case [][]interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("no streams returned")
		}
		first = streams[0]
	case []interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("no streams returned")
		}
		first = streams[0]
	default:
		return 0, fmt.Errorf("unexpected streams type: %T", v.Value())
	}

	entry, ok := first.([]interface{})
	if !ok || len(entry) == 0 {
		return 0, fmt.Errorf("unexpected stream entry type: %T", first)
	}
	nodeID, ok := entry[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected node ID type: %T", entry[0])
	}
	return nodeID, nil
}
