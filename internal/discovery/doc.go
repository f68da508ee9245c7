// Package discovery advertises and finds wireless projection endpoints
// over mDNS.
//
// In wireless mode the head unit and the phone meet over TCP on the local
// network. A head unit running `aalink listen` registers itself under
// ServiceType so phones and bridges can find its address; `aalink connect`
// can browse the same service type to locate a peer instead of taking an
// address from the configuration.
//
// # Usage
//
//	ad, err := discovery.Advertise("aalink", 5277, map[string]string{"id": sessionID})
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	scanner := discovery.NewScanner()
//	peers, err := scanner.Scan(ctx)
//
// Browsing needs multicast on the local interface; container networks often
// drop it, in which case scans simply return no peers.
package discovery
