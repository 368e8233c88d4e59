// Command sift inspects directories, decides what to do with each file and
// carries out the confident decisions, keeping every change undoable.
//
// Everything runs in-process; there is no daemon connection. The scheduled
// mode lives in siftd, which shares the same construction path.
package main
