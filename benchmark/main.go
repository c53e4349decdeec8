package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	BaseURLGateway  = "localhost:8081"
	BaseURLDispatch = "localhost:8080"

	DriverID = "bench-driver"
	OrderID  = "bench-order"

	// call type
	Driver   = 1
	Customer = 2

	// metric key
	Total        = "total"
	Success      = "success"
	Failure      = "failure"
	ResponseTime = "response_time"
)

type Location struct {
	DriverID string  `json:"driverId"`
	OrderID  string  `json:"orderId,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Metric struct {
	mu            sync.Mutex
	metricSend    map[string]int
	metricReceive map[string]int
	responseTime  []float64
	sentAt        map[int]time.Time
}

func (m *Metric) Success(actor int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch actor {
	case Driver:
		m.metricSend[Success] += 1
	case Customer:
		m.metricReceive[Success] += 1
	}
}

func (m *Metric) Total(actor int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch actor {
	case Driver:
		m.metricSend[Total] += 1
	case Customer:
		m.metricReceive[Total] += 1
	}
}

func (m *Metric) Failure(actor int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch actor {
	case Driver:
		m.metricSend[Failure] += 1
	case Customer:
		m.metricReceive[Failure] += 1
	}
}

func (m *Metric) Sent(seq int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sentAt[seq] = time.Now()
}

// Received records the latency of fix seq, if it is known to have been sent.
func (m *Metric) Received(seq int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sent, ok := m.sentAt[seq]
	if !ok {
		return false
	}
	m.responseTime = append(m.responseTime, time.Since(sent).Seconds())
	return true
}

func median(data []float64) float64 {
	dataCopy := make([]float64, len(data))
	copy(dataCopy, data)

	sort.Float64s(dataCopy)

	var median float64
	l := len(dataCopy)
	if l == 0 {
		return 0
	} else if l%2 == 0 {
		median = (dataCopy[l/2-1] + dataCopy[l/2]) / 2
	} else {
		median = dataCopy[l/2]
	}

	return median
}

func main() {
	m := Metric{
		metricSend:    make(map[string]int),
		metricReceive: make(map[string]int),
		sentAt:        make(map[int]time.Time),
	}

	defer func() {
		median := median(m.responseTime)
		log.Info().Any("metric send", m.metricSend).Any("metric receive", m.metricReceive).Any("response time", m.responseTime).Any("median", median).Msg("finished")
	}()

	const customers, fixes = 5, 7
	ready := make(chan struct{}, customers)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting request as customer")
		TrackOrder(customers, fixes, &m, ready)
		log.Info().Msg("finished request as customer")
	}()
	go func() {
		defer wg.Done()

		for i := 0; i < customers; i++ {
			<-ready
		}
		log.Info().Msg("all client connected")
		log.Info().Msg("starting request as driver")
		SendLocation(fixes, &m)
		log.Info().Msg("finished request as driver")
	}()

	wg.Wait()
}

// seqLat encodes the fix sequence number in its latitude so receivers can
// match a broadcast back to the moment it was sent.
func seqLat(seq int) float64 {
	return 28.0 + float64(seq)/1000
}

func latSeq(lat float64) int {
	return int((lat-28.0)*1000 + 0.5)
}

// SendLocation will send location data as a driver through the gateway
// and will calculate metric by message sent by driver.
// n will be the number of request will made
func SendLocation(n int, m *Metric) {
	for i := 0; i < n; i++ {
		m.Total(Driver)

		loc := Location{
			DriverID: DriverID,
			OrderID:  OrderID,
			Lat:      seqLat(i),
			Lng:      77.1,
		}

		b, err := json.Marshal(loc)
		if err != nil {
			log.Error().Err(err).Msg("error when marshaling location data")
			m.Failure(Driver)
			continue
		}
		m.Sent(i)
		url := fmt.Sprintf("http://%s/%s", BaseURLGateway, "location")
		resp, err := http.Post(url, "application/json", bytes.NewReader(b))
		if err != nil {
			log.Error().Err(err).Msg("error when calling http request")
			m.Failure(Driver)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusAccepted {
			m.Success(Driver)
		} else {
			log.Error().Any("status code", resp.Status).Msg("http call error")
			m.Failure(Driver)
		}
	}
}

// TrackOrder will connect n customers tracking the same order
// and will calculate metric by driver:location message sent by server.
// i will be number of message each customer waits for
func TrackOrder(n, i int, m *Metric, ready chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(n)
	for usr := 0; usr < n; usr++ {
		go func(usr int) {
			log.Info().Any("user", usr).Msg("starting connection")
			defer wg.Done()
			m.Total(Customer)

			url := fmt.Sprintf("ws://%s/%s", BaseURLDispatch, "ws")
			dial, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				log.Error().Err(err).Msg("error when dialing websocket")
				m.Failure(Customer)
				ready <- struct{}{}
				return
			}
			defer dial.Close()

			track := map[string]any{
				"event": "order:track",
				"data":  map[string]any{"orderId": OrderID, "customerId": fmt.Sprintf("bench-customer-%d", usr)},
			}
			if err := dial.WriteJSON(track); err != nil {
				log.Error().Err(err).Msg("error when sending track request")
				m.Failure(Customer)
				ready <- struct{}{}
				return
			}
			log.Info().Any("user", usr).Msg("user connected")
			ready <- struct{}{}

			for resp := 0; resp < i; {
				var frame Frame
				dial.SetReadDeadline(time.Now().Add(10 * time.Second))
				if err = dial.ReadJSON(&frame); err != nil {
					log.Error().Err(err).Msg("error when read location response")
					m.Failure(Customer)
					break
				}
				if frame.Event != "driver:location" {
					continue
				}

				var loc Location
				if err := json.Unmarshal(frame.Data, &loc); err != nil {
					log.Error().Err(err).Msg("error when unmarshaling location data")
					m.Failure(Customer)
					break
				}
				resp++
				if m.Received(latSeq(loc.Lat)) {
					m.Success(Customer)
				}
			}
		}(usr)
	}
	wg.Wait()
}
