package state

import "context"

// Node is one vertex of the window manager tree as returned by get_tree.
// Both the sway-native shape (workspaces directly under outputs, app_id on
// leaves) and the i3/XWayland shape (an extra content container, identity in
// window_properties) decode into it.
type Node struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	Num              int               `json:"num"`
	AppID            string            `json:"app_id"`
	WindowProperties *WindowProperties `json:"window_properties"`
	Focused          bool              `json:"focused"`
	Nodes            []Node            `json:"nodes"`
	FloatingNodes    []Node            `json:"floating_nodes"`
}

// WindowProperties carries X11 identity fields for i3 and XWayland clients.
type WindowProperties struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
	Title    string `json:"title"`
}

// Window is a flattened leaf window with its identity properties. Absent
// properties stay empty; a window may legitimately have none at all.
type Window struct {
	ID       int64
	Class    string
	AppID    string
	Instance string
	Name     string
	Floating bool
}

// Workspace is the per-workspace snapshot the recompute pass operates on.
// Windows are in stable tree order, tiled before floating.
type Workspace struct {
	Num     int
	Name    string
	Focused bool
	Windows []Window
}

// WorkspaceInfo mirrors one entry of the get_workspaces reply.
type WorkspaceInfo struct {
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Focused bool   `json:"focused"`
	Visible bool   `json:"visible"`
	Output  string `json:"output"`
}

// DataSource abstracts the IPC queries needed to build a snapshot.
type DataSource interface {
	GetTree(ctx context.Context) (*Node, error)
	GetWorkspaces(ctx context.Context) ([]WorkspaceInfo, error)
}

// scratchpadWorkspace holds windows hidden on the scratchpad; they are never
// part of any visible workspace title.
const scratchpadWorkspace = "__i3_scratch"

// Workspaces flattens a tree into workspace snapshots in tree order. The
// backend-specific nesting above the workspace level is absorbed here: the
// walk descends until it finds workspace nodes wherever the backend put them.
func Workspaces(root *Node) []Workspace {
	if root == nil {
		return nil
	}
	var result []Workspace
	collectWorkspaces(root, &result)
	return result
}

func collectWorkspaces(node *Node, out *[]Workspace) {
	if node.Type == "workspace" {
		if node.Name == scratchpadWorkspace {
			return
		}
		ws := Workspace{
			Num:     node.Num,
			Name:    node.Name,
			Focused: containsFocus(node),
		}
		for i := range node.Nodes {
			collectWindows(&node.Nodes[i], false, &ws.Windows)
		}
		for i := range node.FloatingNodes {
			collectWindows(&node.FloatingNodes[i], true, &ws.Windows)
		}
		*out = append(*out, ws)
		return
	}
	for i := range node.Nodes {
		collectWorkspaces(&node.Nodes[i], out)
	}
	for i := range node.FloatingNodes {
		collectWorkspaces(&node.FloatingNodes[i], out)
	}
}

func collectWindows(node *Node, floating bool, out *[]Window) {
	if len(node.Nodes) == 0 && len(node.FloatingNodes) == 0 {
		if node.Type != "con" && node.Type != "floating_con" {
			return
		}
		*out = append(*out, newWindow(node, floating))
		return
	}
	for i := range node.Nodes {
		collectWindows(&node.Nodes[i], floating, out)
	}
	for i := range node.FloatingNodes {
		collectWindows(&node.FloatingNodes[i], true, out)
	}
}

func newWindow(node *Node, floating bool) Window {
	w := Window{
		ID:       node.ID,
		AppID:    node.AppID,
		Name:     node.Name,
		Floating: floating,
	}
	if props := node.WindowProperties; props != nil {
		w.Class = props.Class
		w.Instance = props.Instance
		if props.Title != "" {
			w.Name = props.Title
		}
	}
	return w
}

func containsFocus(node *Node) bool {
	if node.Focused {
		return true
	}
	for i := range node.Nodes {
		if containsFocus(&node.Nodes[i]) {
			return true
		}
	}
	for i := range node.FloatingNodes {
		if containsFocus(&node.FloatingNodes[i]) {
			return true
		}
	}
	return false
}
