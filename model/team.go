package model

// TeamRecord groups agents that share score and message privileges.
// It holds identities only and never owns the member agents.
type TeamRecord struct {
	Name    string
	Leader  AgentID
	Members []AgentID
}

// Contains reports whether id is a member of the team.
func (t TeamRecord) Contains(id AgentID) bool {
	for _, m := range t.Members {
		if m == id {
			return true
		}
	}
	return false
}

// IsLeader reports whether id leads the team.
func (t TeamRecord) IsLeader(id AgentID) bool {
	return t.Leader != "" && t.Leader == id
}
