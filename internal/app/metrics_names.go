package app

// Counter and histogram names the upload/download services report through
// Metrics. Kept here (rather than imported from internal/metrics) to avoid a
// dependency from this package on the metrics package's storage concerns --
// internal/metrics stays a generic, name-agnostic batching engine.
const (
	// CounterLinksCreated counts successful C9 uploads (IDLE -> DONE).
	CounterLinksCreated = "links_created_total"
	// CounterLinksDownloaded counts every successful burn-and-serve download.
	CounterLinksDownloaded = "links_downloaded_total"
	// CounterLinksBurned counts links destroyed by the download burn cascade,
	// which today always fires alongside CounterLinksDownloaded but is kept
	// distinct since a future retention policy could burn without serving.
	CounterLinksBurned = "links_burned_total"
	// CounterAccessVerifyFailed counts failed gate-hash comparisons (C10),
	// i.e. a session whose AccessHash did not match its stored GateHash.
	CounterAccessVerifyFailed = "access_verification_failed_total"
)

// HistogramUploadBytes observes the size, in bytes, of each uploaded blob.
// Bucket boundaries are chosen around the service's default 5 GiB MaxBytes
// ceiling, so operators can see where uploads cluster relative to that cap.
const HistogramUploadBytes = "upload_bytes"

// HistogramAttemptsConsumed observes, at burn time after a successful
// download, how many of a link's configured retryCount attempts (domain
// range [1,99]) were consumed. Links that run out of attempts are not
// observed.
const HistogramAttemptsConsumed = "attempts_consumed"

// UploadBytesBuckets are the upper bounds (bytes) for HistogramUploadBytes:
// 1 KiB, 64 KiB, 1 MiB, 10 MiB, 100 MiB, 1 GiB, 5 GiB.
var UploadBytesBuckets = []int64{1 << 10, 1 << 16, 1 << 20, 10 << 20, 100 << 20, 1 << 30, 5 << 30}

// AttemptsConsumedBuckets are the upper bounds for HistogramAttemptsConsumed,
// spanning the domain's retryCount range of [1,99].
var AttemptsConsumedBuckets = []int64{1, 2, 3, 5, 10, 25, 50, 99}
