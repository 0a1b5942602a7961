package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/oracle"
)

// resolveSignature determines the bug signature a trial should search
// for. dag must carry at least one InvariantViolation event. violationIndex
// is the 1-based --violation-index flag value; 0 means "not given". When
// the final violation carries more than one candidate fingerprint and no
// index was given, the operator is prompted on stdin to choose one
// (SPEC_FULL.md §D "Interactive bug-signature selection", grounded on
// mcs_finder.py's MCSFinder.__init__ "[%d]" prompt loop).
func resolveSignature(dag *event.DAG, violationIndex int) (event.Fingerprint, error) {
	violation, ok := dag.LastInvariantViolation()
	if !ok {
		return event.Fingerprint{}, fmt.Errorf("resolveSignature: trace carries no InvariantViolation event")
	}

	if violationIndex > 0 {
		return oracle.SelectSignature(violation, violationIndex-1)
	}

	if list, ok := violation.FP.Payload.([]any); ok && len(list) > 1 {
		chosen, err := promptForSignature(list)
		if err != nil {
			return event.Fingerprint{}, err
		}
		return oracle.SelectSignature(violation, chosen)
	}

	return oracle.SelectSignature(violation, 0)
}

// promptForSignature lists the candidate fingerprints and reads a 1-based
// selection from stdin, translating it to the 0-based index
// oracle.SelectSignature expects.
func promptForSignature(candidates []any) (int, error) {
	fmt.Println("multiple invariant violations found; choose one:")
	for i, c := range candidates {
		fmt.Printf("  [%d] %v\n", i+1, c)
	}
	fmt.Print("> ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("resolveSignature: reading selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("resolveSignature: invalid selection %q: %w", strings.TrimSpace(line), err)
	}
	return n - 1, nil
}
