//go:build linux

package netif

func defaultResolver() attrResolver {
	return sysfsResolver{root: sysfsNetPath}
}
