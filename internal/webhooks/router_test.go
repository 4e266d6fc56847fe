package webhooks

import (
	"testing"
	"time"
)

func taskEvent(action, gid string, at int64) Event {
	return Event{
		Action:    action,
		Resource:  Resource{GID: gid, ResourceType: "task"},
		CreatedAt: time.Unix(at, 0).UTC(),
	}
}

func TestRouterBuffersAndFlushes(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(4))
	first := taskEvent("added", "12001", 1)
	second := taskEvent("changed", "12001", 2)
	router.Route(first)
	router.Route(second)
	sub := router.Subscribe("12001")
	defer sub.Close()
	got1 := <-sub.Events
	if got1.Key() != first.Key() {
		t.Fatalf("expected first buffered event, got %s", got1.Key())
	}
	got2 := <-sub.Events
	if got2.Key() != second.Key() {
		t.Fatalf("expected second buffered event, got %s", got2.Key())
	}
}

func TestRouterDedupesRetriedDeliveries(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe("12001")
	defer sub.Close()
	event := taskEvent("completed", "12001", 1)
	router.Route(event)
	router.Route(event)
	select {
	case got := <-sub.Events:
		if got.Key() != event.Key() {
			t.Fatalf("unexpected event: %s", got.Key())
		}
	default:
		t.Fatalf("expected first delivery")
	}
	select {
	case <-sub.Events:
		t.Fatalf("retried delivery passed through")
	default:
	}
}

func TestRouterFallsBackToParentSubscription(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe("12001")
	defer sub.Close()
	event := taskEvent("changed", "99002", 1)
	event.Parent = &Resource{GID: "12001", ResourceType: "task"}
	router.Route(event)
	select {
	case got := <-sub.Events:
		if got.Resource.GID != "99002" {
			t.Fatalf("unexpected event: %+v", got)
		}
	default:
		t.Fatalf("subtask event never reached parent subscriber")
	}
}

func TestRouterKeepsDeletionOnOverflow(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1))
	sub := router.Subscribe("12001")
	defer sub.Close()
	oldest := taskEvent("changed", "12001", 1)
	critical := taskEvent("deleted", "12001", 2)
	router.Route(oldest)
	router.Route(critical)
	if got := <-sub.Events; got.Action != "deleted" {
		t.Fatalf("expected deletion to replace oldest, got %s", got.Action)
	}
}

func TestRouterDropsIncomingWhenOldestCritical(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1))
	sub := router.Subscribe("12001")
	defer sub.Close()
	critical := taskEvent("removed", "12001", 1)
	incoming := taskEvent("changed", "12001", 2)
	router.Route(critical)
	router.Route(incoming)
	if got := <-sub.Events; got.Action != "removed" {
		t.Fatalf("expected critical event to survive overflow, got %s", got.Action)
	}
}

func TestRouterBacklogRespectsLimit(t *testing.T) {
	router := NewRouter(RouterWithBacklogLimit(2))
	router.Route(taskEvent("added", "12001", 1))
	router.Route(taskEvent("changed", "12001", 2))
	router.Route(taskEvent("completed", "12001", 3))
	sub := router.Subscribe("12001")
	defer sub.Close()
	if got := <-sub.Events; got.Action != "changed" {
		t.Fatalf("expected oldest backlog entry dropped, got %s", got.Action)
	}
	if got := <-sub.Events; got.Action != "completed" {
		t.Fatalf("expected newest entry retained, got %s", got.Action)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe("12001")
	sub.Close()
	router.Route(taskEvent("changed", "12001", 1))
	if _, open := <-sub.Events; open {
		t.Fatalf("expected closed channel after unsubscribe")
	}
}
