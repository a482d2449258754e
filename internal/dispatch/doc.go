// Package dispatch turns a message and an ordered file list into
// correctly sized delivery units and drives each unit through a retry
// policy against the transport client.
//
// One Engine.Run is one delivery run: plan -> (retry per unit, pacing
// between groups) -> report. Nothing outlives a run; there is no
// persisted state here.
package dispatch
