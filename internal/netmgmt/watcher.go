package netmgmt

import (
	"net"
	"net/netip"
	"sync"
	"time"
)

// InterfaceAddr is one address assigned to a network interface.
type InterfaceAddr struct {
	Interface string
	Addr      netip.Addr
}

// AddrsFunc lists the current interface addresses.
type AddrsFunc func() ([]InterfaceAddr, error)

// SystemAddrs lists the addresses of every non-loopback interface that is up.
func SystemAddrs() ([]InterfaceAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []InterfaceAddr
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok {
				continue
			}
			out = append(out, InterfaceAddr{Interface: ifc.Name, Addr: addr.Unmap()})
		}
	}
	return out, nil
}

// addrWatcher polls interface addresses and raises add and delete events
// for changes. Addresses present on the first poll are reported as added.
type addrWatcher struct {
	interval time.Duration
	list     AddrsFunc
	raise    func(EventInfo) int
	logger   Logger

	seen map[InterfaceAddr]struct{}

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newAddrWatcher(interval time.Duration, list AddrsFunc, raise func(EventInfo) int, logger Logger) *addrWatcher {
	return &addrWatcher{
		interval: interval,
		list:     list,
		raise:    raise,
		logger:   logger,
		seen:     make(map[InterfaceAddr]struct{}),
		done:     make(chan struct{}),
	}
}

func (w *addrWatcher) start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *addrWatcher) stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *addrWatcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll diffs the current address set against the last one.
func (w *addrWatcher) poll() {
	addrs, err := w.list()
	if err != nil {
		w.logger.Warn("listing interface addresses failed", "error", err)
		return
	}

	current := make(map[InterfaceAddr]struct{}, len(addrs))
	for _, a := range addrs {
		current[a] = struct{}{}
		if _, ok := w.seen[a]; ok {
			continue
		}
		ev := EventIPv6AddrAdd
		if a.Addr.Is4() {
			ev = EventIPv4AddrAdd
		}
		w.logger.Debug("address added", "interface", a.Interface, "addr", a.Addr.String())
		w.raise(EventInfo{Event: ev, Interface: a.Interface, Addr: a.Addr})
	}

	for a := range w.seen {
		if _, ok := current[a]; ok || !a.Addr.Is4() {
			continue
		}
		w.logger.Debug("address removed", "interface", a.Interface, "addr", a.Addr.String())
		w.raise(EventInfo{Event: EventIPv4AddrDel, Interface: a.Interface, Addr: a.Addr})
	}

	w.seen = current
}
