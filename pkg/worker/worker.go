package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mokurokubooks/mokuroku/pkg/books"
	"github.com/mokurokubooks/mokuroku/pkg/config"
	"github.com/mokurokubooks/mokuroku/pkg/jobs"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/scanner"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	bookService *books.Service
	jobService  *jobs.Service
	scanner     *scanner.Scanner

	// jobCtx is cancelled on shutdown so running scans stop cooperatively
	// between books, leaving their sessions resumable.
	jobCtx    context.Context
	cancelJob context.CancelFunc

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB, scn *scanner.Scanner) *Worker {
	jobCtx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		config: cfg,
		log:    logger.New(),

		bookService: books.NewService(db),
		jobService:  jobs.NewService(db),
		scanner:     scn,

		jobCtx:    jobCtx,
		cancelJob: cancel,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeAcquisitionScan: w.ProcessAcquisitionScanJob,
		models.JobTypeResumeScan:      w.ProcessResumeScanJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := 5 * time.Second
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			for _, job := range j {
				w.queue <- job
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
			ctx := log.WithContext(w.jobCtx)

			// Claim the job for this process before doing any work.
			job.Status = models.JobStatusInProgress
			job.ProcessID = &processID

			err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
				Columns: []string{"status", "process_id"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
				continue
			}

			fn, ok := w.processFuncs[job.Type]
			if !ok {
				log.Error("can't find process function for type")
				continue
			}
			err = fn(ctx, job)

			// The job context may be cancelled by shutdown at this point, so
			// status updates run on a fresh context.
			updateCtx := log.WithContext(context.Background())
			if err != nil {
				log.Err(err).Error("process error")
				job.Status = models.JobStatusFailed
				if errors.Is(err, context.Canceled) {
					// Interrupted, not failed; leave it claimable by a later
					// process so the scan resumes.
					job.Status = models.JobStatusPending
					job.ProcessID = nil
				}
				if err := w.jobService.UpdateJob(updateCtx, job, jobs.UpdateJobOptions{
					Columns: []string{"status", "process_id"},
				}); err != nil {
					log.Err(err).Error("update job error")
				}
				continue
			}

			job.Status = models.JobStatusCompleted

			err = w.jobService.UpdateJob(updateCtx, job, jobs.UpdateJobOptions{
				Columns: []string{"status"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
				continue
			}
		}
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)
	w.cancelJob()

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
