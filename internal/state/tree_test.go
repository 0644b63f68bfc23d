package state

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func leaf(id int64, appID string, props *WindowProperties, name string) Node {
	return Node{ID: id, Type: "con", AppID: appID, WindowProperties: props, Name: name}
}

func TestWorkspacesSwayShape(t *testing.T) {
	// sway: workspaces sit directly under outputs.
	root := &Node{
		Type: "root",
		Nodes: []Node{{
			Type: "output",
			Name: "eDP-1",
			Nodes: []Node{
				{
					Type: "workspace",
					Num:  1,
					Name: "1",
					Nodes: []Node{
						leaf(10, "org.mozilla.firefox", nil, "Mozilla Firefox"),
						leaf(11, "foot", nil, "~"),
					},
				},
			},
		}},
	}
	got := Workspaces(root)
	want := []Workspace{{
		Num:  1,
		Name: "1",
		Windows: []Window{
			{ID: 10, AppID: "org.mozilla.firefox", Name: "Mozilla Firefox"},
			{ID: 11, AppID: "foot", Name: "~"},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("workspace snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkspacesI3Shape(t *testing.T) {
	// i3: outputs hold content containers which hold workspaces, and leaves
	// carry identity in window_properties.
	root := &Node{
		Type: "root",
		Nodes: []Node{{
			Type: "output",
			Name: "HDMI-A-1",
			Nodes: []Node{{
				Type: "con",
				Name: "content",
				Nodes: []Node{{
					Type: "workspace",
					Num:  2,
					Name: "2: web",
					Nodes: []Node{
						leaf(20, "", &WindowProperties{Class: "Firefox", Instance: "Navigator", Title: "Mozilla Firefox"}, ""),
					},
				}},
			}},
		}},
	}
	got := Workspaces(root)
	if len(got) != 1 {
		t.Fatalf("expected 1 workspace, got %d", len(got))
	}
	win := got[0].Windows[0]
	if win.Class != "Firefox" || win.Instance != "Navigator" || win.Name != "Mozilla Firefox" {
		t.Fatalf("identity not taken from window_properties: %#v", win)
	}
}

func TestWorkspacesExcludesScratchpad(t *testing.T) {
	root := &Node{
		Type: "root",
		Nodes: []Node{{
			Type: "output",
			Name: "__i3",
			Nodes: []Node{{
				Type: "workspace",
				Num:  -1,
				Name: "__i3_scratch",
				FloatingNodes: []Node{
					leaf(30, "", &WindowProperties{Class: "KeePassXC"}, "passwords"),
				},
			}},
		}, {
			Type: "output",
			Name: "eDP-1",
			Nodes: []Node{{
				Type: "workspace", Num: 1, Name: "1",
			}},
		}},
	}
	got := Workspaces(root)
	if len(got) != 1 || got[0].Num != 1 {
		t.Fatalf("scratchpad workspace should be excluded: %#v", got)
	}
}

func TestWorkspacesFlattensSplitsAndOrdersFloatingLast(t *testing.T) {
	root := &Node{
		Type: "root",
		Nodes: []Node{{
			Type: "output",
			Nodes: []Node{{
				Type: "workspace",
				Num:  3,
				Name: "3",
				Nodes: []Node{
					{
						Type: "con",
						Nodes: []Node{
							leaf(1, "emacs", nil, "init.el"),
							leaf(2, "foot", nil, "~"),
						},
					},
					leaf(3, "imv", nil, "photo.png"),
				},
				FloatingNodes: []Node{
					leaf(4, "pavucontrol", nil, "Volume Control"),
				},
			}},
		}},
	}
	got := Workspaces(root)
	ids := make([]int64, 0, 4)
	for _, w := range got[0].Windows {
		ids = append(ids, w.ID)
	}
	want := []int64{1, 2, 3, 4}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("window order mismatch (-want +got):\n%s", diff)
	}
	if !got[0].Windows[3].Floating {
		t.Fatalf("expected floating window to be marked floating")
	}
}

func TestContainsFocus(t *testing.T) {
	root := &Node{
		Type: "root",
		Nodes: []Node{{
			Type: "output",
			Nodes: []Node{
				{Type: "workspace", Num: 1, Name: "1", Nodes: []Node{leaf(1, "foot", nil, "~")}},
				{Type: "workspace", Num: 2, Name: "2", Nodes: []Node{
					{Type: "con", Nodes: []Node{
						{ID: 2, Type: "con", AppID: "emacs", Focused: true},
					}},
				}},
			},
		}},
	}
	got := Workspaces(root)
	if got[0].Focused || !got[1].Focused {
		t.Fatalf("focus attribution wrong: %#v", got)
	}
}

func TestNodeDecodesNullAppID(t *testing.T) {
	data := []byte(`{"id":7,"type":"con","name":"xterm","app_id":null,` +
		`"window_properties":{"class":"XTerm","instance":"xterm","title":"xterm"},` +
		`"nodes":[],"floating_nodes":[]}`)
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if node.AppID != "" || node.WindowProperties.Class != "XTerm" {
		t.Fatalf("decode mismatch: %#v", node)
	}
}
