package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// clientFlags are shared by every command that talks HTTP.
type clientFlags struct {
	insecure       bool
	cacert         string
	ignoreTS       bool
	clientCert     string
	noProxy        bool
	disableCookies bool
}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("insecure", false, "Skip TLS verification")
	cmd.Flags().String("cacert", "", "Path to custom CA certificate (PEM)")
	cmd.Flags().Bool("ignore-truststore", false, "Use only the provided CA certificate")
	cmd.Flags().String("client-cert-config", "", "Path to client certificate config JSON {\"cert\":\"\",\"key\":\"\"}")
	cmd.Flags().Bool("noproxy", false, "Disable proxy (ignore environment)")
	cmd.Flags().Bool("disable-cookies", false, "Do not store/send cookies between requests")
}

func clientFlagsFromCmd(cmd *cobra.Command) clientFlags {
	var f clientFlags
	f.insecure, _ = cmd.Flags().GetBool("insecure")
	f.cacert, _ = cmd.Flags().GetString("cacert")
	f.ignoreTS, _ = cmd.Flags().GetBool("ignore-truststore")
	f.clientCert, _ = cmd.Flags().GetString("client-cert-config")
	f.noProxy, _ = cmd.Flags().GetBool("noproxy")
	f.disableCookies, _ = cmd.Flags().GetBool("disable-cookies")
	return f
}

func (f clientFlags) build() (*http.Client, error) {
	return buildHTTPClient(f.insecure, f.cacert, f.ignoreTS, f.clientCert, f.noProxy, f.disableCookies)
}

func buildHTTPClient(insecure bool, cacert string, ignoreTS bool, clientCertPath string, noProxy bool, disableCookies bool) (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: insecure} //nolint:gosec // user opted in

	if cacert != "" {
		pemData, err := os.ReadFile(cacert)
		if err != nil {
			return nil, fmt.Errorf("read cacert: %w", err)
		}
		var pool *x509.CertPool
		if ignoreTS {
			pool = x509.NewCertPool()
		} else {
			pool, err = x509.SystemCertPool()
			if err != nil {
				pool = x509.NewCertPool()
			}
		}
		if ok := pool.AppendCertsFromPEM(pemData); !ok {
			return nil, fmt.Errorf("failed to append CA cert")
		}
		tlsConfig.RootCAs = pool
	}

	if clientCertPath != "" {
		cfgBytes, err := os.ReadFile(clientCertPath)
		if err != nil {
			return nil, fmt.Errorf("read client-cert-config: %w", err)
		}
		certPath, keyPath, err := parseClientCertConfig(clientCertPath, cfgBytes)
		if err != nil {
			return nil, err
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	tr := &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	if !noProxy {
		tr.Proxy = http.ProxyFromEnvironment
	}

	// Per-request deadlines come from the executor timeout; the client
	// timeout only caps runaway transfers.
	client := &http.Client{
		Transport: tr,
		Timeout:   5 * time.Minute,
	}
	if !disableCookies {
		if jar, err := cookiejar.New(nil); err == nil {
			client.Jar = jar
		}
	}
	return client, nil
}

func parseClientCertConfig(configPath string, raw []byte) (certPath, keyPath string, err error) {
	var cfg struct {
		Cert string `json:"cert"`
		Key  string `json:"key"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", "", fmt.Errorf("parse client-cert-config: %w", err)
	}
	if cfg.Cert == "" || cfg.Key == "" {
		return "", "", fmt.Errorf("client-cert-config requires cert/key")
	}
	return resolveRelative(configPath, cfg.Cert), resolveRelative(configPath, cfg.Key), nil
}

func resolveRelative(cfgPath, target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(filepath.Dir(cfgPath), target)
}
