package dispatch

// see https://github.com/kubernetes/client-go/blob/master/examples/in-cluster-client-configuration/main.go

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"strings"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
	v1batch "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	v1 "k8s.io/client-go/kubernetes/typed/batch/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const RenderIdLabel = "enginimate.renderId"
const namespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

/**
initialise connection to Kubernetes from a pod within the cluster
*/
func InClusterClient() (*kubernetes.Clientset, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		log.Error().Msgf("Could not establish cluster connection: %s", err)
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		log.Error().Msgf("Could not establish cluster connection: %s", err)
		return nil, err
	}
	return clientset, nil
}

/**
initialise a connection to Kubernetes from outside the cluster. This requires a kubeconfig file (e.g. for kubectl)
to describe how to connect and authorise to the cluster
*/
func OutOfClusterClient(kubeConfigPath string) (*kubernetes.Clientset, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeConfigPath)
	if err != nil {
		log.Error().Msgf("Could not build out-of-cluster config: %s", err)
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		log.Error().Msgf("Could not establish cluster connection: %s", err)
		return nil, err
	}
	return clientset, nil
}

func GetK8Client(kubeConfigPath string) (*kubernetes.Clientset, error) {
	if kubeConfigPath == "" {
		return InClusterClient()
	}
	return OutOfClusterClient(kubeConfigPath)
}

/**
determine the namespace that we are running in. Outside the cluster one must be configured.
*/
func GetMyNamespace(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	content, readErr := ioutil.ReadFile(namespaceFile)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return "", errors.New("not running in a cluster and no namespace configured")
		}
		log.Error().Msgf("Could not read in k8s namespace: %s", readErr)
		return "", readErr
	}
	return strings.TrimSpace(string(content)), nil
}

/**
helper function to get a "Jobs" client for the render namespace
*/
func GetJobClient(config helpers.KubernetesDispatchConfig) (v1.JobInterface, error) {
	k8client, cliErr := GetK8Client(config.KubeConfig)
	if cliErr != nil {
		return nil, cliErr
	}
	ns, nsErr := GetMyNamespace(config.Namespace)
	if nsErr != nil {
		return nil, nsErr
	}
	return k8client.BatchV1().Jobs(ns), nil
}

/**
Loads up the job manifest that renders run from
*/
func LoadFromTemplate(fileName string) (*v1batch.Job, error) {
	bytes, readErr := ioutil.ReadFile(fileName)
	if readErr != nil {
		return nil, readErr
	}
	//THIS is the right way to read k8s manifests.... https://github.com/kubernetes/client-go/issues/193
	decode := scheme.Codecs.UniversalDeserializer()

	obj, _, err := decode.Decode(bytes, nil, nil)
	if err != nil {
		return nil, err
	}

	switch obj.(type) {
	case *v1batch.Job:
		return obj.(*v1batch.Job), nil
	default:
		log.Error().Msgf("Expected to get a job from template %s but got %s instead", fileName, reflect.TypeOf(obj).String())
		return nil, errors.New("wrong manifest type")
	}
}

/**
KubernetesDispatcher runs each render as a batch Job built from a template manifest. The container gets the
render parameters as environment variables and reports back through the webhook.
*/
type KubernetesDispatcher struct {
	jobClient    v1.JobInterface
	templateFile string
	webhookURL   string
}

func NewKubernetesDispatcher(jobClient v1.JobInterface, templateFile string, webhookURL string) (*KubernetesDispatcher, error) {
	if _, err := LoadFromTemplate(templateFile); err != nil {
		return nil, fmt.Errorf("could not load render job template %s: %w", templateFile, err)
	}
	if webhookURL == "" {
		return nil, errors.New("kubernetes dispatch needs a webhook url for renders to report to")
	}
	return &KubernetesDispatcher{
		jobClient:    jobClient,
		templateFile: templateFile,
		webhookURL:   webhookURL,
	}, nil
}

func NewKubernetesDispatcherFromConfig(config helpers.KubernetesDispatchConfig) (*KubernetesDispatcher, error) {
	jobClient, err := GetJobClient(config)
	if err != nil {
		return nil, err
	}
	return NewKubernetesDispatcher(jobClient, config.TemplateFile, config.WebhookURL)
}

func (d *KubernetesDispatcher) JobClient() v1.JobInterface {
	return d.jobClient
}

func (d *KubernetesDispatcher) Dispatch(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	envVars := map[string]string{
		"RENDER_UUID":    req.Uuid,
		"RENDER_CODE":    req.Code,
		"RENDER_SCENE":   req.SceneName,
		"RENDER_QUALITY": req.Quality,
		"WEBHOOK_URL":    d.webhookURL,
	}
	return createRenderJob(req.Uuid, "render-", envVars, d.templateFile, d.jobClient)
}

func createRenderJob(renderId string, jobNameBase string, envVars map[string]string, templateFile string, jobClient v1.JobInterface) error {
	jobPtr, loadErr := LoadFromTemplate(templateFile)
	if loadErr != nil {
		log.Error().Str("render_id", renderId).Msgf("Could not load job template data: %s", loadErr)
		return loadErr
	}
	if len(jobPtr.Spec.Template.Spec.Containers) == 0 {
		return errors.New("render job template has no containers")
	}

	currentLabels := jobPtr.GetLabels()
	if currentLabels == nil {
		currentLabels = make(map[string]string)
	}
	currentLabels[RenderIdLabel] = renderId
	jobPtr.SetLabels(currentLabels)

	vars := make([]corev1.EnvVar, 0, len(envVars))
	for k, v := range envVars {
		vars = append(vars, corev1.EnvVar{Name: k, Value: v})
	}
	//template values such as WEBHOOK_SECRET references are kept unless we set the same name
	for _, v := range jobPtr.Spec.Template.Spec.Containers[0].Env {
		if _, haveOverwrite := envVars[v.Name]; !haveOverwrite {
			vars = append(vars, v)
		}
	}
	jobPtr.Spec.Template.Spec.Containers[0].Env = vars

	jobPtr.ObjectMeta.Name = ""
	jobPtr.ObjectMeta.GenerateName = jobNameBase

	created, err := jobClient.Create(jobPtr)
	if err != nil {
		log.Error().Str("render_id", renderId).Msgf("Can't create job: %s", err)
		return err
	}
	log.Info().Str("render_id", renderId).Msgf("Created render job %s", created.Name)
	return nil
}

/**
look up the Kubernetes Jobs carrying the given render id
*/
func FindRunnersFor(renderId string, client v1.JobInterface) ([]v1batch.Job, error) {
	response, err := client.List(metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", RenderIdLabel, renderId),
	})
	if err != nil {
		log.Error().Str("render_id", renderId).Msgf("Could not list k8s render jobs: %s", err)
		return nil, err
	}
	return response.Items, nil
}

func isActive(job *v1batch.Job) bool {
	for _, cond := range job.Status.Conditions {
		if (cond.Type == v1batch.JobComplete || cond.Type == v1batch.JobFailed) && cond.Status == corev1.ConditionTrue {
			return false
		}
	}
	return job.Status.Succeeded == 0 && (job.Status.Active > 0 || job.Status.Failed == 0)
}

/**
delete the finished Kubernetes jobs for a render. Jobs that are still running are left alone.
Returns the number removed.
*/
func RemoveRunnersFor(renderId string, client v1.JobInterface) (int, error) {
	matching, err := FindRunnersFor(renderId, client)
	if err != nil {
		return 0, err
	}

	propagation := metav1.DeletePropagationBackground
	removed := 0
	for i := range matching {
		k8job := &matching[i]
		if isActive(k8job) {
			log.Info().Str("render_id", renderId).Msgf("%s seems to still be active, not removing it", k8job.Name)
			continue
		}
		delErr := client.Delete(k8job.Name, &metav1.DeleteOptions{PropagationPolicy: &propagation})
		if delErr != nil {
			//not a fatal error
			log.Error().Str("render_id", renderId).Msgf("Could not delete k8s job %s: %s", k8job.Name, delErr)
			continue
		}
		removed += 1
	}
	return removed, nil
}

/**
RemoveRunners clears away the finished Kubernetes jobs left behind by a render
*/
func (d *KubernetesDispatcher) RemoveRunners(renderId string) (int, error) {
	return RemoveRunnersFor(renderId, d.jobClient)
}
