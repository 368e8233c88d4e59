package organizer_test

import (
	"time"

	"sift/internal/ledger"
	"sift/internal/scan"
)

func ledgerFilterAll() ledger.Filter {
	return ledger.Filter{}
}

func remoteDescriptor(ref string) scan.FileDescriptor {
	return scan.DescribeRemote(ref, 1024, time.Now().Add(-48*time.Hour))
}
