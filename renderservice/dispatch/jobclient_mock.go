package dispatch

import (
	"errors"
	"fmt"
	"sync"

	v1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
)

/**
JobClientMock is an in-memory stand-in for the batch Jobs client. Created jobs are named from their
GenerateName and can be listed by label and deleted again.
*/
type JobClientMock struct {
	ErrorResponse error
	JobsCreated   []*v1.Job
	JobsDeleted   []string
	mutex         sync.Mutex
}

func (j *JobClientMock) Create(newJob *v1.Job) (*v1.Job, error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if newJob.Name == "" {
		newJob.Name = fmt.Sprintf("%s%d", newJob.GenerateName, len(j.JobsCreated))
	}
	j.JobsCreated = append(j.JobsCreated, newJob)
	return newJob, nil
}

func (j *JobClientMock) Update(*v1.Job) (*v1.Job, error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	return nil, errors.New("Not implemented by mock")
}

func (j *JobClientMock) UpdateStatus(*v1.Job) (*v1.Job, error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	return nil, errors.New("Not implemented by mock")
}

func (j *JobClientMock) Delete(name string, options *metav1.DeleteOptions) error {
	if j.ErrorResponse != nil {
		return j.ErrorResponse
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	for i, job := range j.JobsCreated {
		if job.Name == name {
			j.JobsCreated = append(j.JobsCreated[:i], j.JobsCreated[i+1:]...)
			j.JobsDeleted = append(j.JobsDeleted, name)
			return nil
		}
	}
	return fmt.Errorf("job %s not found", name)
}

func (j *JobClientMock) DeleteCollection(options *metav1.DeleteOptions, listOptions metav1.ListOptions) error {
	if j.ErrorResponse != nil {
		return j.ErrorResponse
	}
	return errors.New("Not implemented by mock")
}

func (j *JobClientMock) Get(name string, options metav1.GetOptions) (*v1.Job, error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	for _, job := range j.JobsCreated {
		if job.Name == name {
			return job, nil
		}
	}
	return nil, fmt.Errorf("job %s not found", name)
}

func (j *JobClientMock) List(opts metav1.ListOptions) (*v1.JobList, error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	selector, parseErr := labels.Parse(opts.LabelSelector)
	if parseErr != nil {
		return nil, parseErr
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()
	result := &v1.JobList{}
	for _, job := range j.JobsCreated {
		if selector.Matches(labels.Set(job.Labels)) {
			result.Items = append(result.Items, *job)
		}
	}
	return result, nil
}

func (j *JobClientMock) Watch(opts metav1.ListOptions) (watch.Interface, error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	return nil, errors.New("Not implemented by mock")
}

func (j *JobClientMock) Patch(name string, pt types.PatchType, data []byte, subresources ...string) (result *v1.Job, err error) {
	if j.ErrorResponse != nil {
		return nil, j.ErrorResponse
	}
	return nil, errors.New("Not implemented by mock")
}
