// ABOUTME: JSON types of the node API
// ABOUTME: Shared by the HTTP client and the mock node server
package api

import (
	"github.com/google/uuid"
)

// NodesPath is the listing endpoint relative to the API base
const NodesPath = "/nodes"

// TypeWebsocket marks nodes that serve the live endpoint
const TypeWebsocket = "websocket"

// Signal describes one channel of a direction
type Signal struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// Direction describes the samples flowing in or out of a node
type Direction struct {
	Vectorize int      `json:"vectorize"`
	Signals   []Signal `json:"signals,omitempty"`
}

// Node is one entry of the nodes listing
type Node struct {
	Name        string    `json:"name"`
	UUID        uuid.UUID `json:"uuid"`
	Type        string    `json:"type"`
	State       string    `json:"state"`
	Description string    `json:"description,omitempty"`
	In          Direction `json:"in"`
	Out         Direction `json:"out"`
}

// IsWebsocket reports whether the node serves live frames
func (n Node) IsWebsocket() bool {
	return n.Type == TypeWebsocket
}

// DisplayName prefers the description, as the node selector does
func (n Node) DisplayName() string {
	if n.Description != "" {
		return n.Description
	}
	return n.Name
}

// SignalNames returns the labels of the samples the node sends
func (n Node) SignalNames() []string {
	names := make([]string, len(n.Out.Signals))
	for i, s := range n.Out.Signals {
		names[i] = s.Name
	}
	return names
}
