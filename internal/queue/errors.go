package queue

import "fmt"

var errShuttingDown = fmt.Errorf("job queue is shutting down")

func errQueueFull(max int) error {
	return fmt.Errorf("queue is full (max %d jobs), try again later", max)
}
