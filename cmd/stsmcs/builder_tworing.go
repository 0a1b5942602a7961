package main

import "github.com/sts-go/sts/examples/tworing"

// tworingBuilder is the trial.Builder this binary drives: the two-switch
// ring worked example. Swap this alias for your own trial.Builder
// implementation to point stsmcs at a real topology.
type tworingBuilder = tworing.Builder
