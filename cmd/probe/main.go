// probe is a small verification client: it connects to a running simulator
// over Modbus/TCP and polls a handful of registers, printing what it reads.
// It exists to exercise the simulator from the wire side during manual
// testing.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"time"

	mb "github.com/goburrow/modbus"
)

func main() {
	var address string
	var unitID int
	var holdingStart, holdingCount int
	var coilStart, coilCount int
	var poll time.Duration
	flag.StringVar(&address, "address", "127.0.0.1:502", "simulator TCP address")
	flag.IntVar(&unitID, "unit", 1, "Modbus unit id")
	flag.IntVar(&holdingStart, "holding-start", 0, "first holding register to read")
	flag.IntVar(&holdingCount, "holding-count", 4, "number of holding registers to read")
	flag.IntVar(&coilStart, "coil-start", 0, "first coil to read")
	flag.IntVar(&coilCount, "coil-count", 8, "number of coils to read")
	flag.DurationVar(&poll, "poll", 2*time.Second, "poll interval; 0 polls once and exits")
	flag.Parse()

	handler := mb.NewTCPClientHandler(address)
	handler.Timeout = 5 * time.Second
	handler.SlaveId = byte(unitID)
	if err := handler.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer handler.Close()

	client := mb.NewClient(handler)

	for {
		pollOnce(client, uint16(holdingStart), uint16(holdingCount), uint16(coilStart), uint16(coilCount))
		if poll <= 0 {
			return
		}
		time.Sleep(poll)
	}
}

func pollOnce(client mb.Client, holdingStart, holdingCount, coilStart, coilCount uint16) {
	if holdingCount > 0 {
		data, err := client.ReadHoldingRegisters(holdingStart, holdingCount)
		if err != nil {
			log.Printf("read holding %d..%d: %v", holdingStart, holdingStart+holdingCount, err)
		} else {
			log.Printf("holding[%d:%d] = %v", holdingStart, holdingStart+holdingCount, decodeWords(data))
		}
	}
	if coilCount > 0 {
		data, err := client.ReadCoils(coilStart, coilCount)
		if err != nil {
			log.Printf("read coils %d..%d: %v", coilStart, coilStart+coilCount, err)
		} else {
			log.Printf("coils[%d:%d] = % 08b", coilStart, coilStart+coilCount, data)
		}
	}
}

func decodeWords(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[i*2 : i*2+2])
	}
	return out
}
