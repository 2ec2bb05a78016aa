package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.LookupPapersActivity)
	w.RegisterActivity(a.LatestPapersActivity)
	w.RegisterActivity(a.IngestPaperActivity)
	w.RegisterActivity(a.BackfillSweepActivity)
	w.RegisterActivity(a.GenerateInsightActivity)
}
