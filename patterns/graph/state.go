package graph

import "sync"

// nodeState holds the statuses and results of one execution. Nodes of a
// level run concurrently, so every access is locked.
type nodeState struct {
	mu       sync.RWMutex
	statuses map[string]NodeStatus
	results  map[string]*NodeResult
}

// newNodeState returns a state with every node pending.
func newNodeState(nodeIDs []string) *nodeState {
	state := &nodeState{
		statuses: make(map[string]NodeStatus, len(nodeIDs)),
		results:  make(map[string]*NodeResult, len(nodeIDs)),
	}
	for _, nodeID := range nodeIDs {
		state.statuses[nodeID] = NodePending
	}
	return state
}

// status returns the status of nodeID, NodePending when unknown.
func (state *nodeState) status(nodeID string) NodeStatus {
	state.mu.RLock()
	defer state.mu.RUnlock()

	if status, ok := state.statuses[nodeID]; ok {
		return status
	}
	return NodePending
}

// result returns the stored result of nodeID, nil when none.
func (state *nodeState) result(nodeID string) *NodeResult {
	state.mu.RLock()
	defer state.mu.RUnlock()

	return state.results[nodeID]
}

func (state *nodeState) setRunning(nodeID string) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.statuses[nodeID] = NodeRunning
}

// finish records the terminal status and result of nodeID together.
func (state *nodeState) finish(nodeID string, status NodeStatus, result *NodeResult) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.statuses[nodeID] = status
	state.results[nodeID] = result
}
