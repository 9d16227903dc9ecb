/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cluster

import (
	"context"
	"fmt"

	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"knative.dev/pkg/logging"
)

// Client is a typed wrapper over the control-plane pod and node surface.
// Every failure it returns is transient from the caller's point of view; the
// scheduler logs and retries on the next tick.
type Client struct {
	kube      kubernetes.Interface
	namespace string
}

func NewClient(kube kubernetes.Interface) *Client {
	return &Client{kube: kube, namespace: metav1.NamespaceDefault}
}

// NewInClusterClient builds a Client from the pod's service account, which is
// how the orchestrator always reaches the control plane in cluster-present mode.
func NewInClusterClient() (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("loading in-cluster config, %w", err)
	}
	kube, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("constructing clientset, %w", err)
	}
	return NewClient(kube), nil
}

func (c *Client) ListNodes(ctx context.Context) ([]v1.Node, error) {
	nodeList, err := c.kube.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes, %w", err)
	}
	return nodeList.Items, nil
}

func (c *Client) ListPods(ctx context.Context) ([]v1.Pod, error) {
	podList, err := c.kube.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods, %w", err)
	}
	return podList.Items, nil
}

// CreatePod submits the pod. AlreadyExists surfaces unwrapped so callers can
// downgrade it to a warning.
func (c *Client) CreatePod(ctx context.Context, pod *v1.Pod) error {
	_, err := c.kube.CoreV1().Pods(c.namespace).Create(ctx, pod, metav1.CreateOptions{})
	return err
}

// DeletePod is idempotent; deleting an absent pod is success.
func (c *Client) DeletePod(ctx context.Context, name string) error {
	err := c.kube.CoreV1().Pods(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		logging.FromContext(ctx).Debugf("pod %s already gone", name)
		return nil
	}
	return err
}

func (c *Client) PodExists(ctx context.Context, name string) (bool, error) {
	if _, err := c.kube.CoreV1().Pods(c.namespace).Get(ctx, name, metav1.GetOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsAlreadyExists reports whether a CreatePod failure was an HTTP 409.
func IsAlreadyExists(err error) bool {
	return apierrors.IsAlreadyExists(err)
}
