package checkout_test

import (
	"flag"
	"log"
	"testing"

	"github.com/grailbio/testutil"
)

var nocleanup = flag.Bool("nocleanup", false, "don't clean up test checkouts after tests are run")

func tempDir(t *testing.T) string {
	t.Helper()
	dir, cleanup := testutil.TempDir(t, "", "")
	if *nocleanup {
		log.Println("not cleaning up", dir)
	} else {
		t.Cleanup(cleanup)
	}
	return dir
}
