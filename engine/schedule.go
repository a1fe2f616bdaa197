package engine

import (
	"context"

	"github.com/wenzapen/bookrule/model"
)

// Task is one source to query in a SearchAll fan-out.
type Task struct {
	Index   int
	Source  *model.BookSource
	Keyword string
}

type Scheduler interface {
	Schedule(ctx context.Context)
	Push(ctx context.Context, tasks ...*Task)
	Pull(ctx context.Context) (*Task, bool)
}

// Schedule queues pushed tasks without bound and hands them to whichever
// worker pulls next. It stops when the context given to Schedule is done.
type Schedule struct {
	requestChan chan *Task
	workerChan  chan *Task
	reqQueue    []*Task
}

func NewSchedule() *Schedule {
	s := Schedule{}
	s.requestChan = make(chan *Task)
	s.workerChan = make(chan *Task)
	return &s
}

func (s *Schedule) Push(ctx context.Context, tasks ...*Task) {
	for _, t := range tasks {
		select {
		case s.requestChan <- t:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Schedule) Pull(ctx context.Context) (*Task, bool) {
	select {
	case t := <-s.workerChan:
		return t, true
	case <-ctx.Done():
		return nil, false
	}
}

func (s *Schedule) Schedule(ctx context.Context) {
	for {
		var t *Task
		var workerCh chan *Task
		if len(s.reqQueue) > 0 {
			t = s.reqQueue[0]
			workerCh = s.workerChan
		}
		select {
		case workerCh <- t:
			s.reqQueue = s.reqQueue[1:]
		case r := <-s.requestChan:
			s.reqQueue = append(s.reqQueue, r)
		case <-ctx.Done():
			return
		}
	}
}
