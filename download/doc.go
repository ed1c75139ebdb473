// Package download fetches remote firmware parts.
//
// Every part is fetched concurrently. A failing part never cancels its
// siblings: DownloadAll waits until all fetches settle and reports each
// one as succeeded, failed or cancelled. Any failure makes the whole set
// a partial failure, and the caller retries the whole set.
//
// Each fetch gets its own deadline: BaseTimeout until the response headers
// arrive, then BaseTimeout plus PerMiBTimeout for every started MiB of the
// declared Content-Length.
//
// The filename of a part is taken from the server's Content-Disposition
// header when present, because servers may compute names the manifest
// does not know.
//
//	d := download.New(download.WithBaseURL("https://flasher.example.org/"))
//	results, err := d.DownloadAll(ctx, download.RequestsFor(meta),
//	    func(i int, loaded, total int64) {
//	        fmt.Printf("part %d: %d/%d\n", i, loaded, total)
//	    })
//	var pf *download.PartialFailureError
//	if errors.As(err, &pf) {
//	    // show pf.Failures, offer "retry all"
//	}
package download
