package events

import (
	"context"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

type fakeChannel struct {
	closed    bool
	published []string
	err       error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	if msg.DeliveryMode != amqp.Persistent {
		return errors.New("transient message")
	}
	c.published = append(c.published, key)
	return nil
}

func (c *fakeChannel) IsClosed() bool { return c.closed }
func (c *fakeChannel) Close() error   { c.closed = true; return nil }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type broker struct {
	dials    int
	channels []*fakeChannel
	err      error
}

func (b *broker) dial() (channel, io.Closer, error) {
	b.dials++
	if b.err != nil {
		return nil, nil, b.err
	}
	ch := &fakeChannel{}
	b.channels = append(b.channels, ch)
	return ch, nopCloser{}, nil
}

func event() BookingEvent {
	return NewBookingEvent(&model.Booking{ID: "b1", Status: model.StatusConfirmed})
}

func TestPublisherPublishes(t *testing.T) {
	b := &broker{}
	p, err := newPublisher(b.dial, "booking.exchange", nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), KeyConfirmed, event()))
	assert.Equal(t, 1, b.dials)
	assert.Equal(t, []string{KeyConfirmed}, b.channels[0].published)
}

func TestPublisherRedialsClosedChannel(t *testing.T) {
	b := &broker{}
	p, err := newPublisher(b.dial, "booking.exchange", nil)
	require.NoError(t, err)

	// broker restart
	b.channels[0].closed = true

	require.NoError(t, p.Publish(context.Background(), KeyCancelled, event()))
	assert.Equal(t, 2, b.dials)
	assert.Empty(t, b.channels[0].published)
	assert.Equal(t, []string{KeyCancelled}, b.channels[1].published)
}

func TestPublisherDropsChannelOnClosedError(t *testing.T) {
	b := &broker{}
	p, err := newPublisher(b.dial, "booking.exchange", nil)
	require.NoError(t, err)
	b.channels[0].err = amqp.ErrClosed

	assert.Error(t, p.Publish(context.Background(), KeyConfirmed, event()))
	require.NoError(t, p.Publish(context.Background(), KeyConfirmed, event()))
	assert.Equal(t, 2, b.dials)
}

func TestPublisherReportsFailedRedial(t *testing.T) {
	b := &broker{}
	p, err := newPublisher(b.dial, "booking.exchange", nil)
	require.NoError(t, err)

	b.channels[0].closed = true
	b.err = errors.New("dial rabbitmq: connection refused")
	assert.ErrorContains(t, p.Publish(context.Background(), KeyConfirmed, event()), "connection refused")

	b.err = nil
	assert.NoError(t, p.Publish(context.Background(), KeyConfirmed, event()))
}

func TestNewPublisherFailsFast(t *testing.T) {
	_, err := newPublisher((&broker{err: errors.New("refused")}).dial, "x", nil)
	assert.Error(t, err)
}
