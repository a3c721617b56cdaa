package queue

import (
	"fmt"

	"Atlas/storage/mq"
)

// 行程事件拓扑
const (
	ItineraryExchange = "itinerary.events"

	RoutingKeyItineraryForked = "itinerary.forked"
	QueueForkedCount          = "itinerary.forked.count"
)

// DeclareTopology 声明 exchange 与队列，server 和 worker 启动时都会调用
func DeclareTopology() error {
	if err := mq.Declare(ItineraryExchange, QueueForkedCount, RoutingKeyItineraryForked); err != nil {
		return fmt.Errorf("declare forked count queue: %w", err)
	}
	return nil
}
