package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"gathersim/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "agent name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 8,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME agent_id=%s tick_rate=%d resources=%d nodes=%d",
				w.AgentID, w.WorldParams.TickRateHz, w.Catalogs.Resources.Count, w.Catalogs.Nodes.Count)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			handleObs(conn, logger, &obs)
		}
	}
}

// handleObs keeps the bot busy: whenever it sits idle with an eligible node in
// view, start gathering the nearest one. The server resolves ties itself when
// node_id is omitted.
func handleObs(conn *websocket.Conn, logger *log.Logger, obs *protocol.ObsMsg) {
	for _, ev := range obs.Events {
		switch ev["type"] {
		case "GATHER_CYCLE":
			logger.Printf("tick=%d gathered %v x%v from %v", obs.Tick, ev["resource"], ev["count"], ev["node_id"])
		case "GATHER_STOP":
			logger.Printf("tick=%d stopped: %v", obs.Tick, ev["reason"])
		case "GATHER_FAIL":
			logger.Printf("tick=%d fail: %v", obs.Tick, ev["code"])
		}
	}

	if obs.Self.State != "IDLE" || len(obs.Nodes) == 0 {
		return
	}

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		AgentID:         obs.AgentID,
		Commands: []protocol.CommandReq{
			{ID: fmt.Sprintf("C_gather_%d", obs.Tick), Type: protocol.CmdGatherStart},
		},
	}
	_ = conn.WriteJSON(act)
}
