package mail

import (
	"context"
	"log"
	"sync"
	"time"
)

// Run drains q with n workers, handing every job to sender, until ctx is
// cancelled. Failed deliveries are logged and dropped.
func Run(ctx context.Context, q Queue, sender Sender, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				job, err := q.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("mail worker=%d dequeue err=%v", worker, err)
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
					continue
				}
				deliver(ctx, sender, job)
			}
		}(i)
	}
	wg.Wait()
}

func deliver(ctx context.Context, sender Sender, job Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := sender.Send(ctx, job); err != nil {
		log.Printf("mail job=%s to=%s err=%v", job.ID, job.To, err)
		return
	}
	log.Printf("mail job=%s to=%s sent", job.ID, job.To)
}
