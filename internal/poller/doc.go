// Package poller drives the pulse loop of Pulsewatch.
//
// The main components are:
//
//   - [RunPool]: runs jobs with a bounded number in flight
//   - [Plan]: the resolved, compiled view of a configuration snapshot
//   - [Scheduler]: the cycle loop that probes every site, saves state and sleeps
//
// Users of the pulsewatch library should not need to interact with this
// package directly. Configuration is done through the main pulsewatch package.
package poller
